// Package solana wraps the blocto SDK client with the operations the bot
// needs: balances, fee estimation, SOL and SPL transfers and confirmation
// polling, with per-user network selection.
package solana

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"

	apperrors "github.com/solmate-labs/solmate-bot/internal/errors"
	"github.com/solmate-labs/solmate-bot/pkg/config"
	"github.com/solmate-labs/solmate-bot/pkg/metrics"
)

// Network selects which RPC endpoint a user's operations run against.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkDevnet  Network = "devnet"
)

const (
	// LamportsPerSOL is the number of base units in one SOL.
	LamportsPerSOL = 1_000_000_000
	// FallbackFeeLamports is used when the RPC fee estimate is unavailable.
	FallbackFeeLamports = 5000

	confirmPollInterval = 2 * time.Second
)

// Service exposes chain operations over a client per supported network.
type Service struct {
	clients        map[Network]*client.Client
	confirmTimeout time.Duration
	log            *slog.Logger
}

// NewService builds clients for both supported networks.
func NewService(cfg config.SolanaConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 60 * time.Second
	}

	return &Service{
		clients: map[Network]*client.Client{
			NetworkMainnet: client.NewClient(cfg.MainnetRPC),
			NetworkDevnet:  client.NewClient(cfg.DevnetRPC),
		},
		confirmTimeout: confirmTimeout,
		log:            log,
	}
}

func (s *Service) rpc(network Network) *client.Client {
	if c, ok := s.clients[network]; ok {
		return c
	}
	return s.clients[NetworkMainnet]
}

// HealthCheck verifies the mainnet RPC endpoint is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	start := time.Now()
	_, err := s.rpc(NetworkMainnet).GetVersion(ctx)
	metrics.RecordRPC("getVersion", statusOf(err), time.Since(start))
	if err != nil {
		return fmt.Errorf("rpc version check: %w", err)
	}
	return nil
}

// Balance returns the lamport balance of an address. Transient RPC failures
// are retried with backoff before the error is surfaced.
func (s *Service) Balance(ctx context.Context, network Network, addr string) (uint64, error) {
	var balance uint64
	err := apperrors.WithRetry(ctx, func() error {
		start := time.Now()
		b, err := s.rpc(network).GetBalance(ctx, addr)
		metrics.RecordRPC("getBalance", statusOf(err), time.Since(start))
		if err != nil {
			return apperrors.NewRPCError(err)
		}
		balance = b
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("get balance for %s: %w", addr, err)
	}
	return balance, nil
}

// TokenBalance returns the base-unit balance and decimals of the owner's
// associated token account for the given mint. A missing token account is
// reported as a zero balance, not an error.
func (s *Service) TokenBalance(ctx context.Context, network Network, owner, mint string) (uint64, uint8, error) {
	ata, _, err := common.FindAssociatedTokenAddress(
		common.PublicKeyFromString(owner),
		common.PublicKeyFromString(mint),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("derive token account: %w", err)
	}

	var amount uint64
	var decimals uint8
	err = apperrors.WithRetry(ctx, func() error {
		start := time.Now()
		balance, err := s.rpc(network).GetTokenAccountBalance(ctx, ata.ToBase58())
		metrics.RecordRPC("getTokenAccountBalance", statusOf(err), time.Since(start))
		if err != nil {
			// the account simply not existing means a zero balance
			if accountMissing(err) {
				return nil
			}
			return apperrors.NewRPCError(err)
		}
		amount = balance.Amount
		decimals = balance.Decimals
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("get token balance: %w", err)
	}

	return amount, decimals, nil
}

// EstimateTransferFee asks the RPC node for the fee of a basic transfer,
// falling back to a fixed estimate when the node cannot answer.
func (s *Service) EstimateTransferFee(ctx context.Context, network Network, from, to string) uint64 {
	c := s.rpc(network)

	blockhash, err := c.GetLatestBlockhash(ctx)
	if err != nil {
		return FallbackFeeLamports
	}

	sender := common.PublicKeyFromString(from)
	msg := types.NewMessage(types.NewMessageParam{
		FeePayer:        sender,
		RecentBlockhash: blockhash.Blockhash,
		Instructions: []types.Instruction{
			transferInstruction(sender, common.PublicKeyFromString(to), 1),
		},
	})

	start := time.Now()
	fee, err := c.GetFeeForMessage(ctx, msg)
	metrics.RecordRPC("getFeeForMessage", statusOf(err), time.Since(start))
	if err != nil || fee == nil || *fee == 0 {
		return FallbackFeeLamports
	}

	return *fee
}

// SignatureStatus reports a submitted transaction's current state as one of
// "pending", "confirmed", "finalized" or "failed".
func (s *Service) SignatureStatus(ctx context.Context, network Network, signature string) (string, error) {
	start := time.Now()
	status, err := s.rpc(network).GetSignatureStatus(ctx, signature)
	metrics.RecordRPC("getSignatureStatuses", statusOf(err), time.Since(start))
	if err != nil {
		return "", fmt.Errorf("get signature status: %w", err)
	}

	switch {
	case status == nil:
		return "pending", nil
	case status.Err != nil:
		return "failed", nil
	case status.ConfirmationStatus != nil && *status.ConfirmationStatus == rpc.CommitmentFinalized:
		return "finalized", nil
	case status.ConfirmationStatus != nil && *status.ConfirmationStatus == rpc.CommitmentConfirmed:
		return "confirmed", nil
	}
	return "pending", nil
}

// WaitForConfirmation polls the signature status until it is confirmed or
// finalized, or until the confirmation timeout elapses.
func (s *Service) WaitForConfirmation(ctx context.Context, network Network, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	c := s.rpc(network)
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation of %s timed out: %w", signature, ctx.Err())
		case <-ticker.C:
			status, err := c.GetSignatureStatus(ctx, signature)
			if err != nil || status == nil {
				continue
			}
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", signature, status.Err)
			}
			if status.ConfirmationStatus != nil &&
				(*status.ConfirmationStatus == rpc.CommitmentConfirmed || *status.ConfirmationStatus == rpc.CommitmentFinalized) {
				return nil
			}
		}
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
