// Package units formats token amounts held in base units as decimal strings.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/params"
)

// EtherDecimals is the number of decimal places of ether and of the
// campaign token.
const EtherDecimals uint8 = 18

// denominations maps the named units to their decimal places
var denominations = map[string]uint8{
	"wei":    0,
	"kwei":   3,
	"mwei":   6,
	"gwei":   9,
	"szabo":  12,
	"finney": 15,
	"ether":  18,
}

// Decimals returns the decimal places of a named denomination
func Decimals(unit string) (uint8, error) {
	decimals, ok := denominations[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	return decimals, nil
}

// FormatUnits renders value scaled down by 10^decimals.
//
// The fraction keeps at least one digit and drops trailing zeros, so one
// gwei under 9 decimals is "1.0". With zero decimals the raw integer is
// returned unchanged. A nil value is treated as zero.
func FormatUnits(value *big.Int, decimals uint8) string {
	v := new(big.Int)
	if value != nil {
		v.Set(value)
	}

	negative := v.Sign() < 0
	v.Abs(v)

	var out string
	if decimals == 0 {
		out = v.String()
	} else {
		whole, frac := new(big.Int).QuoRem(v, math.BigPow(10, int64(decimals)), new(big.Int))

		fraction := frac.String()
		if pad := int(decimals) - len(fraction); pad > 0 {
			fraction = strings.Repeat("0", pad) + fraction
		}
		fraction = strings.TrimRight(fraction, "0")
		if fraction == "" {
			fraction = "0"
		}
		out = whole.String() + "." + fraction
	}

	if negative {
		return "-" + out
	}
	return out
}

// FormatNamed renders value in a named denomination such as "gwei"
func FormatNamed(value *big.Int, unit string) (string, error) {
	decimals, err := Decimals(unit)
	if err != nil {
		return "", err
	}
	return FormatUnits(value, decimals), nil
}

// FormatEther renders value with 18 decimals
func FormatEther(value *big.Int) string {
	return FormatUnits(value, EtherDecimals)
}

// ParseUnits converts a decimal string into base units.
// A fractional part longer than decimals is rejected unless the extra
// digits are all zero.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, fmt.Errorf("empty amount")
	}

	negative := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")

	whole, fraction, _ := strings.Cut(raw, ".")
	if whole == "" && fraction == "" {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}
	if whole == "" {
		whole = "0"
	}

	fraction = strings.TrimRight(fraction, "0")
	if len(fraction) > int(decimals) {
		return nil, fmt.Errorf("fractional component of %q exceeds %d decimals", s, decimals)
	}
	fraction += strings.Repeat("0", int(decimals)-len(fraction))

	digits := whole + fraction
	for _, c := range digits {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("invalid decimal amount %q", s)
		}
	}

	result, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}
	if negative {
		result.Neg(result)
	}
	return result, nil
}

// Conversion is one line of the conversion demonstration
type Conversion struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Result string `json:"result"`
}

// Demonstrations formats one gwei and one ether under the different ways a
// denomination can be given: raw integer, unit name, explicit decimals and
// the ether default.
func Demonstrations() []Conversion {
	oneGwei := big.NewInt(params.GWei)
	oneEther := big.NewInt(params.Ether)

	gweiNamed, _ := FormatNamed(oneGwei, "gwei")

	return []Conversion{
		{Label: "gwei as raw integer", Value: oneGwei.String(), Result: FormatUnits(oneGwei, 0)},
		{Label: "gwei by unit name", Value: oneGwei.String(), Result: gweiNamed},
		{Label: "gwei with 9 decimals", Value: oneGwei.String(), Result: FormatUnits(oneGwei, 9)},
		{Label: "ether by default", Value: oneEther.String(), Result: FormatEther(oneEther)},
		{Label: "ether with 18 decimals", Value: oneEther.String(), Result: FormatUnits(oneEther, 18)},
	}
}
