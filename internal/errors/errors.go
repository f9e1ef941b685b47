package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError carries an internal message for logs and a localization key
// (UserMessage) rendered to the user by the bot layer.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: "errors.validation",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("database error: %s", underlyingMsg),
		UserMessage: "errors.temporary",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewRPCError(cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     "solana rpc error",
		UserMessage: "errors.network",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewProtocolError(op string, cause error) *AppError {
	return &AppError{
		Code:        "E310",
		Message:     fmt.Sprintf("flipflop %s failed", op),
		UserMessage: "errors.protocol",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewInsufficientFundsError(have, need uint64) *AppError {
	return &AppError{
		Code:        "E320",
		Message:     fmt.Sprintf("insufficient funds: have %d, need %d lamports", have, need),
		UserMessage: "errors.insufficient_balance",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewTimeoutError(op string, cause error) *AppError {
	return &AppError{
		Code:        "E330",
		Message:     fmt.Sprintf("%s timed out", op),
		UserMessage: "errors.timeout",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewInvalidTransactionError(cause error) *AppError {
	return &AppError{
		Code:        "E340",
		Message:     "invalid transaction",
		UserMessage: "errors.invalid_transaction",
		Severity:    SeverityMedium,
		Retryable:   false,
		cause:       cause,
	}
}

func NewNotFoundError(what string) *AppError {
	return &AppError{
		Code:        "E350",
		Message:     fmt.Sprintf("%s not found", what),
		UserMessage: "errors.not_found",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewStateExpiredError() *AppError {
	return &AppError{
		Code:        "E400",
		Message:     "flow state missing or expired",
		UserMessage: "errors.session_expired",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        "E500",
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: "errors.rate_limited",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}
