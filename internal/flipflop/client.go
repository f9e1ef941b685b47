// Package flipflop talks to the flipflop token-launch protocol service:
// mint metadata lookups, mint and refund submissions and URC (referral code)
// management. Every call carries an explicit timeout since the upstream API
// has none of its own.
package flipflop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/solmate-labs/solmate-bot/internal/errors"
	"github.com/solmate-labs/solmate-bot/pkg/config"
	"github.com/solmate-labs/solmate-bot/pkg/metrics"
)

// Client is the HTTP client for the flipflop protocol API.
type Client struct {
	http          *resty.Client
	queryTimeout  time.Duration
	actionTimeout time.Duration
	log           *slog.Logger
}

// New constructs a Client from the flipflop section of the config.
func New(cfg config.FlipflopConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	queryTimeout := cfg.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}
	actionTimeout := cfg.ActionTimeout
	if actionTimeout <= 0 {
		actionTimeout = 60 * time.Second
	}

	return &Client{
		http:          resty.New().SetBaseURL(cfg.BaseURL).SetHeader("Accept", "application/json"),
		queryTimeout:  queryTimeout,
		actionTimeout: actionTimeout,
		log:           log,
	}
}

type apiResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

// MintData fetches token metadata for a mint address. When wallet is
// non-empty the response includes the amount that wallet has minted.
func (c *Client) MintData(ctx context.Context, tokenAddress, wallet string) (MintData, error) {
	var out apiResponse[MintData]
	err := c.call(ctx, "mint_data", c.queryTimeout, func(ctx context.Context) (*resty.Response, error) {
		req := c.http.R().SetContext(ctx).SetResult(&out).
			SetQueryParam("token", tokenAddress)
		if wallet != "" {
			req.SetQueryParam("wallet", wallet)
		}
		return req.Get("/v1/mint-data")
	}, &out.Success, &out.Error)
	if err != nil {
		return MintData{}, err
	}

	return out.Data, nil
}

// Mint submits one mint action for the wallet against the token, optionally
// attributed to a referral code, and returns the transaction signature.
func (c *Client) Mint(ctx context.Context, req MintRequest) (string, error) {
	var out apiResponse[MintResult]
	err := c.call(ctx, "mint", c.actionTimeout, func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetResult(&out).SetBody(req).Post("/v1/mint")
	}, &out.Success, &out.Error)
	if err != nil {
		return "", err
	}

	return out.Data.Signature, nil
}

// Refund returns the wallet's minted tokens to the protocol in exchange for
// the refundable deposit.
func (c *Client) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	var out apiResponse[RefundResult]
	err := c.call(ctx, "refund", c.actionTimeout, func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetResult(&out).SetBody(req).Post("/v1/refund")
	}, &out.Success, &out.Error)
	if err != nil {
		return RefundResult{}, err
	}

	return out.Data, nil
}

// URCData looks up a referral code record.
func (c *Client) URCData(ctx context.Context, code string) (URCData, error) {
	var out apiResponse[URCData]
	err := c.call(ctx, "urc_data", c.queryTimeout, func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetResult(&out).
			SetQueryParam("code", code).Get("/v1/urc")
	}, &out.Success, &out.Error)
	if err != nil {
		return URCData{}, err
	}

	return out.Data, nil
}

// SetURC registers a referral code for the wallet on the given token.
func (c *Client) SetURC(ctx context.Context, req SetURCRequest) error {
	var out apiResponse[struct{}]
	return c.call(ctx, "set_urc", c.actionTimeout, func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetResult(&out).SetBody(req).Post("/v1/urc")
	}, &out.Success, &out.Error)
}

func (c *Client) call(
	ctx context.Context,
	op string,
	timeout time.Duration,
	do func(ctx context.Context) (*resty.Response, error),
	success *bool,
	apiErr *string,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := do(ctx)
	duration := time.Since(start)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordProtocolCall(op, "timeout", duration)
		return apperrors.NewTimeoutError("flipflop "+op, err)
	case err != nil:
		metrics.RecordProtocolCall(op, "error", duration)
		return apperrors.NewProtocolError(op, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		metrics.RecordProtocolCall(op, "not_found", duration)
		return apperrors.NewNotFoundError(op)
	}
	if resp.StatusCode() >= 400 || !*success {
		metrics.RecordProtocolCall(op, "rejected", duration)
		msg := *apiErr
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode())
		}
		return apperrors.Classify("flipflop "+op, errors.New(msg))
	}

	metrics.RecordProtocolCall(op, "ok", duration)
	return nil
}
