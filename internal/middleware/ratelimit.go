package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/solmate-labs/solmate-bot/internal/errors"
	"github.com/solmate-labs/solmate-bot/internal/i18n"
	"github.com/solmate-labs/solmate-bot/internal/ratelimit"
)

// RateLimitMiddleware enforces per-user rate limits: a cheap message limit
// applied to every update, and a stricter transfer limit consulted by flows
// before side-effecting submissions.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	catalog *i18n.Manager
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, catalog *i18n.Manager, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		catalog: catalog,
		log:     log,
	}
}

// Handle returns a telebot middleware that throttles inbound updates.
// Limiter failures fail open.
func (m *RateLimitMiddleware) Handle(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if m.limiter == nil || m.rules == nil {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil {
			return next(c)
		}
		userID := sender.ID

		limit, window := m.rules.MessageLimit()
		result, err := m.limiter.Check(context.Background(), fmt.Sprintf("msg:%d", userID), limit, window)
		if err != nil {
			m.log.Warn("rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
			return next(c)
		}

		if !result.Allowed {
			m.log.Warn("message rate limit exceeded", slog.Int64("user_id", userID))
			return c.Send(m.catalog.Translator("").T("errors.rate_limited"))
		}

		return next(c)
	}
}

// AllowTransfer reports whether the user may submit another transfer, mint
// or refund right now. Flows call this before taking the user's lock.
func (m *RateLimitMiddleware) AllowTransfer(ctx context.Context, userID int64) error {
	if m.limiter == nil || m.rules == nil {
		return nil
	}

	limit, window := m.rules.TransferLimit()
	result, err := m.limiter.Check(ctx, fmt.Sprintf("transfer:%d", userID), limit, window)
	if err != nil {
		m.log.Warn("transfer rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil
	}

	if !result.Allowed {
		retryAfter := int(time.Until(result.ResetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return apperrors.NewRateLimitError(retryAfter)
	}

	return nil
}
