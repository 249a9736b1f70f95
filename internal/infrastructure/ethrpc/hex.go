package ethrpc

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"avaxdash/internal/domain"
)

// DecodeHexUint parses a 0x-prefixed base-16 quantity.
func DecodeHexUint(value string) (uint64, error) {
	digits, err := hexDigits(value)
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid hex quantity %q", domain.ErrDecode, value)
	}
	return parsed, nil
}

// EncodeHexUint formats value in canonical form: lowercase, no leading zeros.
func EncodeHexUint(value uint64) string {
	return "0x" + strconv.FormatUint(value, 16)
}

// DecodeHexBig parses a 0x-prefixed quantity of arbitrary size.
func DecodeHexBig(value string) (*big.Int, error) {
	digits, err := hexDigits(value)
	if err != nil {
		return nil, err
	}
	parsed, ok := new(big.Int).SetString(digits, 16)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid hex quantity %q", domain.ErrDecode, value)
	}
	return parsed, nil
}

// EncodeHexBig formats a non-negative value in canonical form.
func EncodeHexBig(value *big.Int) string {
	if value == nil {
		return "0x0"
	}
	return "0x" + value.Text(16)
}

func hexDigits(value string) (string, error) {
	if !strings.HasPrefix(value, "0x") && !strings.HasPrefix(value, "0X") {
		return "", fmt.Errorf("%w: missing 0x prefix in %q", domain.ErrDecode, value)
	}
	digits := value[2:]
	if digits == "" {
		return "", fmt.Errorf("%w: empty hex value", domain.ErrDecode)
	}
	if digits[0] == '+' || digits[0] == '-' {
		return "", fmt.Errorf("%w: signed hex value %q", domain.ErrDecode, value)
	}
	return digits, nil
}

func requireHexUint(field string, value *string) (uint64, error) {
	if value == nil {
		return 0, fmt.Errorf("%w: %s is missing", domain.ErrDecode, field)
	}
	parsed, err := DecodeHexUint(*value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return parsed, nil
}

func requireHexBig(field string, value *string) (*big.Int, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: %s is missing", domain.ErrDecode, field)
	}
	parsed, err := DecodeHexBig(*value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return parsed, nil
}

// scaleDown divides an integer amount by 10^decimals. The result is rounded
// once from a 256-bit intermediate, so the relative error stays below 1e-15.
func scaleDown(amount *big.Int, decimals int) float64 {
	if amount == nil {
		return 0
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	num := new(big.Float).SetPrec(256).SetInt(amount)
	den := new(big.Float).SetPrec(256).SetInt(divisor)
	result, _ := new(big.Float).SetPrec(256).Quo(num, den).Float64()
	return result
}
