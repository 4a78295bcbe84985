// Package strategy holds the pure pricing and quantity functions applied to
// offer specs. They perform no I/O.
package strategy

import (
	"github.com/shopspring/decimal"

	"p2p-ad-bot/internal/types"
)

// Price resolves the price an offer should be posted at. A fixed price wins
// unconditionally; otherwise the reference price is used as is. Bounds and
// eligibility filters on the rule are not applied here.
func Price(rule types.PricingRule, referencePrice decimal.Decimal) decimal.Decimal {
	if rule.FixedPrice != nil {
		return *rule.FixedPrice
	}
	return referencePrice
}
