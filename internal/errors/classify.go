package errors

import (
	"context"
	"errors"
	"strings"
)

// Classify maps an error returned by the blockchain client or the flipflop
// protocol into an AppError with a user-facing category. Already-classified
// errors pass through unchanged.
func Classify(op string, err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(op, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline"):
		return NewTimeoutError(op, err)
	case strings.Contains(msg, "insufficient"):
		return &AppError{
			Code:        "E320",
			Message:     "insufficient funds: " + err.Error(),
			UserMessage: "errors.insufficient_balance",
			Severity:    SeverityLow,
			Retryable:   false,
			cause:       err,
		}
	case strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist"):
		return NewNotFoundError(op)
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection") || strings.Contains(msg, "refused"):
		return NewRPCError(err)
	case strings.Contains(msg, "invalid"):
		return NewInvalidTransactionError(err)
	default:
		return &AppError{
			Code:        "E900",
			Message:     op + " failed: " + err.Error(),
			UserMessage: "errors.unknown",
			Severity:    SeverityHigh,
			Retryable:   false,
			cause:       err,
		}
	}
}
