package status

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatTokens translates an amount in indivisible units into a user-friendly form
// taking decimals into account, according to the scheme (# ### or #.##).
func FormatTokens(units decimal.Decimal, decimals int32, symbol string) string {
	x := truncate(units.Shift(-decimals), 3)
	sign := ""
	if x.IsNegative() {
		sign = "-"
		x = x.Abs()
	}
	intPart := sign + formatIntPart(x.Truncate(0).String())
	if x.Equal(x.Truncate(0)) {
		return fmt.Sprintf("%s %s", intPart, symbol)
	}
	parts := strings.Split(x.String(), ".")
	if len(parts) != 2 {
		return fmt.Sprintf("%s %s", intPart, symbol)
	}
	return fmt.Sprintf("%s.%s %s", intPart, parts[1], symbol)
}

func truncate(d decimal.Decimal, n int32) decimal.Decimal {
	if n <= 0 {
		return d.Truncate(n)
	}
	if d.IsZero() {
		return decimal.Zero
	}
	dn := decimal.New(1, n-1)
	if d.Abs().GreaterThanOrEqual(dn) {
		return d.Truncate(0)
	}
	for i := int32(0); i < 32; i++ {
		if d.Abs().Shift(i).GreaterThanOrEqual(dn) {
			return d.Truncate(i)
		}
	}
	return d
}

func formatIntPart(s string) string {
	length := len(s)
	var result []string
	for length > 3 {
		result = append([]string{s[length-3:]}, result...)
		length -= 3
	}
	result = append([]string{s[:length]}, result...)
	return strings.Join(result, " ")
}
