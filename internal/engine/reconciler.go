package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/metrics"
	"p2p-ad-bot/internal/strategy"
	"p2p-ad-bot/internal/types"
)

// referencePrice is what non-fixed pricing rules see. There is no market
// feed yet, so it stays zero.
var referencePrice = decimal.Zero

type reconciler struct {
	metrics *metrics.Metrics
}

func newReconciler(m *metrics.Metrics) *reconciler {
	return &reconciler{metrics: m}
}

// ReconcileSide re-issues every live ad of one side that a spec tags. Each
// spec is handled on its own: a failure is recorded and the next spec runs.
func (r *reconciler) ReconcileSide(ctx context.Context, sess *interfaces.Session, side types.Side) types.PhaseResult {
	res := types.PhaseResult{Phase: "reconcile_" + strings.ToLower(side.String())}

	for _, spec := range sess.SpecsFor(side) {
		res.Attempted++

		op := logger.StartOperation(ctx, "engine.reconcileSpec", "tag", spec.Tag, "side", side.String())
		updated, err := r.reconcileSpec(op.Context(), sess, spec)
		switch {
		case err != nil:
			op.EndWithError(err)
			res.Fail(fmt.Errorf("offer %s: %w", spec.Tag, err))
		case !updated:
			op.End("updated", false)
			res.Skipped++
		default:
			op.End("updated", true)
			res.Succeeded++
		}
	}
	return res
}

func (r *reconciler) reconcileSpec(ctx context.Context, sess *interfaces.Session, spec types.OfferSpec) (bool, error) {
	gw := sess.Gateway

	offers, err := gw.ListOffers(ctx, spec.Side)
	if err != nil {
		return false, fmt.Errorf("list offers: %w", err)
	}

	offer, ok := findByTag(offers, spec.Tag)
	if !ok {
		// The operator may have taken the ad offline; nothing to do
		logger.Debug(ctx, "No live offer matches tag", "tag", spec.Tag, "side", spec.Side.String(), "offers", len(offers))
		return false, nil
	}

	price := strategy.Price(spec.PricingRule, referencePrice)

	available := decimal.Zero
	if spec.QuantityRule.IsMax() {
		bal, err := gw.GetBalance(ctx, sess.AccountType)
		if err != nil {
			return false, fmt.Errorf("get balance: %w", err)
		}
		available = bal.Available
	}

	qty, err := strategy.Quantity(spec.QuantityRule, available)
	if err != nil {
		return false, err
	}

	remark := spec.Remark
	if remark == "" {
		remark = offer.Remark
	}

	upd := types.OfferUpdate{
		ID:         offer.ID,
		PriceType:  types.PriceTypeFixed,
		Price:      price,
		MinAmount:  spec.MinLimit,
		MaxAmount:  spec.MaxLimit,
		PaymentIDs: spec.PaymentIDs,
		Quantity:   qty,
		Remark:     remark,
		ActionType: types.ActionModify,
	}

	// Re-issued every tick, even when nothing changed
	err = gw.UpdateOffer(ctx, upd)
	r.metrics.IncOfferUpdate(spec.Side.String(), err)
	if err != nil {
		return false, fmt.Errorf("update offer %s: %w", offer.ID, err)
	}

	logger.OfferUpdate(ctx, spec.Tag, offer.ID, spec.Side.String(), price.String(), qty.String(),
		"previous_price", offer.Price.String(),
		"previous_quantity", offer.Quantity.String(),
	)
	return true, nil
}

// findByTag returns the first offer whose remark starts with tag.
func findByTag(offers []types.LiveOffer, tag string) (types.LiveOffer, bool) {
	for _, o := range offers {
		if strings.HasPrefix(o.Remark, tag) {
			return o, true
		}
	}
	return types.LiveOffer{}, false
}
