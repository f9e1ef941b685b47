package ratelimit

import (
	"time"

	"github.com/solmate-labs/solmate-bot/pkg/config"
)

// Rules maps configured limits onto the two operation classes the bot
// throttles: ordinary messages and side-effecting submissions.
type Rules struct {
	config config.LimitsConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.LimitsConfig) *Rules {
	return &Rules{config: cfg}
}

// MessageLimit returns the per-user limit for inbound updates.
func (r *Rules) MessageLimit() (int, time.Duration) {
	limit := r.config.MessagesPerMinute
	if limit <= 0 {
		limit = 30
	}
	return limit, time.Minute
}

// TransferLimit returns the per-user limit for transfers, mints and refunds.
func (r *Rules) TransferLimit() (int, time.Duration) {
	limit := r.config.TransfersPerMinute
	if limit <= 0 {
		limit = 5
	}
	return limit, time.Minute
}
