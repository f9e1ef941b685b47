package solana

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	apperrors "github.com/solmate-labs/solmate-bot/internal/errors"
)

// ValidAddress reports whether s is a well-formed Solana address:
// base58 text decoding to exactly 32 bytes.
func ValidAddress(s string) bool {
	decoded, err := base58.Decode(strings.TrimSpace(s))
	return err == nil && len(decoded) == 32
}

// ParseAmount converts a user-entered decimal amount into base units for an
// asset with the given number of decimals. The amount must be positive and
// may not carry more fractional digits than the asset supports.
func ParseAmount(text string, decimals uint8) (uint64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, apperrors.NewValidationError("empty amount")
	}

	intPart, fracPart, _ := strings.Cut(text, ".")
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > int(decimals) {
		return 0, apperrors.NewValidationError(fmt.Sprintf("amount %q has more than %d decimal places", text, decimals))
	}

	// pad the fraction out to the asset's full precision
	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))

	var units uint64
	for _, digits := range []string{intPart, fracPart} {
		for _, r := range digits {
			if r < '0' || r > '9' {
				return 0, apperrors.NewValidationError(fmt.Sprintf("amount %q is not a number", text))
			}
			d := uint64(r - '0')
			if units > (^uint64(0)-d)/10 {
				return 0, apperrors.NewValidationError(fmt.Sprintf("amount %q is too large", text))
			}
			units = units*10 + d
		}
	}

	if units == 0 {
		return 0, apperrors.NewValidationError("amount must be positive")
	}

	return units, nil
}

// FormatAmount renders base units as a decimal string for display.
func FormatAmount(units uint64, decimals uint8) string {
	if decimals == 0 {
		return fmt.Sprintf("%d", units)
	}

	divisor := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		divisor *= 10
	}

	whole := units / divisor
	frac := units % divisor
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}

	fracStr := strings.TrimRight(fmt.Sprintf("%0*d", int(decimals), frac), "0")
	return fmt.Sprintf("%d.%s", whole, fracStr)
}
