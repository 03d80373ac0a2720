package tx

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrAmountTooSmall = errors.New("amount rounds to zero at this precision")
	ErrOverflow       = errors.New("amount overflows 256 bits")
)

// DisplayDecimals is the default precision for human-readable amounts. The
// on-chain value always keeps full precision.
const DisplayDecimals = 6

var ten = big.NewInt(10)

// ParseAmount converts a human-readable decimal string into smallest units
// using exact integer math. This is the only decimal-to-integer conversion
// in the module: the native path, the token path and the estimator all go
// through it, so overflow handling cannot drift between them.
//
// Amounts with more fractional digits than the unit supports are rejected
// rather than silently truncated, and anything that would encode as zero is
// rejected as too small.
func ParseAmount(amount string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("%w: signs not allowed", ErrInvalidAmount)
	}

	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") {
		return nil, fmt.Errorf("%w: multiple decimal points", ErrInvalidAmount)
	}
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("%w: no digits", ErrInvalidAmount)
	}
	if hasDot && fracPart == "" {
		// Trailing dot as in "5." is fine; treat as integer.
		fracPart = ""
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	// Sub-smallest-unit digits are only acceptable when they are zeros.
	if len(fracPart) > int(decimals) {
		if strings.Trim(fracPart[decimals:], "0") != "" {
			return nil, fmt.Errorf("%w: %q needs more than %d decimals", ErrAmountTooSmall, amount, decimals)
		}
		fracPart = fracPart[:decimals]
	}

	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	scale := new(big.Int).Exp(ten, big.NewInt(int64(decimals)), nil)
	value := whole.Mul(whole, scale)

	if fracPart != "" {
		padded := fracPart + strings.Repeat("0", int(decimals)-len(fracPart))
		frac, ok := new(big.Int).SetString(padded, 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
		value.Add(value, frac)
	}

	if value.Sign() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrAmountTooSmall, amount)
	}
	if value.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %q", ErrOverflow, amount)
	}
	return value, nil
}

// FormatAmount renders smallest units as a full-precision decimal string
// with trailing zeros trimmed. ParseAmount(FormatAmount(v)) == v for every
// representable value.
func FormatAmount(value *big.Int, decimals uint8) string {
	if value == nil || value.Sign() == 0 {
		return "0"
	}
	scale := new(big.Int).Exp(ten, big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(value, scale, new(big.Int))

	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := fmt.Sprintf("%0*s", decimals, frac.String())
	fracStr = strings.TrimRight(fracStr, "0")
	return whole.String() + "." + fracStr
}

// DisplayAmount truncates FormatAmount output to at most places fractional
// digits for rendering. Truncation, not rounding: display must never show
// more value than will move on chain.
func DisplayAmount(value *big.Int, decimals uint8, places int) string {
	s := FormatAmount(value, decimals)
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if !hasDot || len(fracPart) <= places {
		return s
	}
	if places <= 0 {
		return intPart
	}
	trimmed := strings.TrimRight(fracPart[:places], "0")
	if trimmed == "" {
		return intPart
	}
	return intPart + "." + trimmed
}

// GweiToWei converts a gwei decimal string to wei. Shares ParseAmount so
// fee conversion obeys the same exactness rules as value conversion.
func GweiToWei(gwei string) (*big.Int, error) {
	return ParseAmount(gwei, 9)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
