package strategy

import (
	"strings"

	"github.com/shopspring/decimal"

	"p2p-ad-bot/internal/types"
)

// Quantity resolves the tradable quantity for an offer. The "max" sentinel
// returns the available balance verbatim; a numeric rule is returned as is.
func Quantity(rule types.QuantityRule, availableBalance decimal.Decimal) (decimal.Decimal, error) {
	if rule.IsMax() {
		return availableBalance, nil
	}

	raw := strings.TrimSpace(rule.Raw)
	if raw == "" {
		return decimal.Zero, &types.InvalidRuleError{Rule: rule.Raw, Reason: "empty quantity rule"}
	}
	q, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &types.InvalidRuleError{Rule: rule.Raw, Reason: "not a number or \"max\""}
	}
	if q.IsNegative() {
		return decimal.Zero, &types.InvalidRuleError{Rule: rule.Raw, Reason: "negative quantity"}
	}
	return q, nil
}
