package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the venue's integer encoding of an offer or order direction.
type Side int

const (
	SideBuy  Side = 0
	SideSell Side = 1

	// SideUnknown marks an order whose side the venue did not report in a
	// readable form. It is never treated as BUY.
	SideUnknown Side = -1
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	case SideUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("SIDE(%d)", int(s))
	}
}

// ParseSide accepts BUY or SELL in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

type PriceType int

const (
	PriceTypeFixed    PriceType = 0
	PriceTypeFloating PriceType = 1
)

const ActionModify = "MODIFY"

// LiveOffer is an ad as currently posted on the venue.
type LiveOffer struct {
	ID         string
	Side       Side
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Remark     string
	MinAmount  decimal.Decimal
	MaxAmount  decimal.Decimal
	PaymentIDs []string
}

// OfferUpdate is the full set of fields re-issued for an ad.
type OfferUpdate struct {
	ID         string
	PriceType  PriceType
	Price      decimal.Decimal
	MinAmount  decimal.Decimal
	MaxAmount  decimal.Decimal
	PaymentIDs []string
	Quantity   decimal.Decimal
	Remark     string
	ActionType string
}

type Order struct {
	ID     string
	Side   Side
	Status int
}

type PaymentTerm struct {
	PaymentType string
	PaymentID   string
}

type OrderDetail struct {
	ID           string
	Side         Side
	Status       int
	PaymentTerms []PaymentTerm
}

// FirstPaymentTerm returns the first payment term, or the zero value when
// the venue supplied none.
func (d OrderDetail) FirstPaymentTerm() PaymentTerm {
	if len(d.PaymentTerms) == 0 {
		return PaymentTerm{}
	}
	return d.PaymentTerms[0]
}

type Balance struct {
	Coin      string
	Available decimal.Decimal
}

// EligibilityFilters are declared per side in the pricing section. They are
// carried through for strategy implementations and are not enforced.
type EligibilityFilters struct {
	PaymentMethods  []string
	MinBalance      decimal.Decimal
	MinLimit        decimal.Decimal
	MaxLimit        decimal.Decimal
	MinRegisterDays int
	MinOrders       int
	Nicknames       []string
}

type PricingRule struct {
	FixedPrice    *decimal.Decimal
	FallbackPrice *decimal.Decimal
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	Filters       EligibilityFilters
}

// QuantityMax is the sentinel rule meaning "use the whole available balance".
const QuantityMax = "max"

// QuantityRule keeps the configured value verbatim; it is interpreted by the
// quantity strategy so that a bad rule fails only its own offer.
type QuantityRule struct {
	Raw string
}

func (r QuantityRule) IsMax() bool {
	return strings.TrimSpace(r.Raw) == QuantityMax
}

// OfferSpec is the declared state of one tagged ad.
type OfferSpec struct {
	Tag          string
	Side         Side
	PricingRule  PricingRule
	QuantityRule QuantityRule
	MinLimit     decimal.Decimal
	MaxLimit     decimal.Decimal
	PaymentIDs   []string
	Remark       string
}

// PhaseResult summarizes one phase of a tick.
type PhaseResult struct {
	Phase     string
	Attempted int
	Succeeded int
	Skipped   int
	Errs      []error
}

func (r *PhaseResult) Fail(err error) {
	r.Errs = append(r.Errs, err)
}

// Err joins all collected failures, or returns nil.
func (r PhaseResult) Err() error {
	return errors.Join(r.Errs...)
}

// OrderStats is a point-in-time view of the fulfillment bookkeeping.
type OrderStats struct {
	Seen     int
	Paid     int
	LastTick time.Time
}
