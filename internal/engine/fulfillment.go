package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/metrics"
	"p2p-ad-bot/internal/types"
)

const (
	GreetingMessage = "\U0001F44B\U0001F440"
	PayingMessage   = "pls wait, I'm paying"
)

// fulfiller drives the per-order workflow. seen and paid live for the whole
// process and are never persisted; a restart greets pending orders again.
type fulfiller struct {
	metrics *metrics.Metrics
	seen    *orderSet
	paid    *orderSet

	mu       sync.RWMutex
	lastTick time.Time
}

func newFulfiller(m *metrics.Metrics) *fulfiller {
	return &fulfiller{
		metrics: m,
		seen:    newOrderSet(),
		paid:    newOrderSet(),
	}
}

// ProcessOrders greets every new pending order and attempts the payment
// step once for buy orders. A failing order does not stop the others.
func (f *fulfiller) ProcessOrders(ctx context.Context, sess *interfaces.Session) types.PhaseResult {
	res := types.PhaseResult{Phase: "process_orders"}
	defer f.markTick()

	orders, err := sess.Gateway.ListPendingOrders(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to list pending orders", err)
		res.Fail(fmt.Errorf("list pending orders: %w", err))
		return res
	}
	logger.Debug(ctx, "Pending orders fetched", "count", len(orders))

	for _, o := range orders {
		res.Attempted++
		op := logger.StartOperation(ctx, "engine.processOrder", "order_id", o.ID, "side", o.Side.String())
		if err := f.processOrder(op.Context(), sess.Gateway, o); err != nil {
			op.EndWithError(err)
			res.Fail(fmt.Errorf("order %s: %w", o.ID, err))
			continue
		}
		op.End()
		res.Succeeded++
	}

	f.metrics.SetTrackedOrders(f.seen.Len(), f.paid.Len())
	return res
}

func (f *fulfiller) processOrder(ctx context.Context, gw interfaces.VenueGateway, o types.Order) error {
	if o.ID == "" {
		return errors.New("order without id")
	}

	// A failed greeting is retried next tick and does not hold back payment
	var errs []error
	if !f.seen.Has(o.ID) {
		if err := gw.SendMessage(ctx, o.ID, GreetingMessage); err != nil {
			errs = append(errs, err)
		} else {
			f.seen.Add(o.ID)
			f.metrics.IncOrderGreeted()
			logger.OrderEvent(ctx, o.ID, "GREETED", "side", o.Side.String())
		}
	}

	if o.Side == types.SideBuy && !f.paid.Has(o.ID) {
		if err := f.pay(ctx, gw, o.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// pay makes the single payment attempt for a buy order. Once the order
// detail is known the id is recorded as paid, whatever the outcome.
func (f *fulfiller) pay(ctx context.Context, gw interfaces.VenueGateway, orderID string) error {
	detail, err := gw.GetOrderDetail(ctx, orderID)
	if err != nil {
		f.metrics.IncOrderPayment("error")
		return fmt.Errorf("order detail: %w", err)
	}
	defer f.paid.Add(orderID)

	term := detail.FirstPaymentTerm()
	if term.PaymentType == "" || term.PaymentID == "" {
		f.metrics.IncOrderPayment("no_terms")
		logger.Warn(ctx, "Order has no usable payment term, not marking paid", "order_id", orderID, "terms", len(detail.PaymentTerms))
		return nil
	}

	if err := gw.MarkAsPaid(ctx, orderID, term.PaymentType, term.PaymentID); err != nil {
		f.metrics.IncOrderPayment("error")
		return fmt.Errorf("mark as paid: %w", err)
	}
	f.metrics.IncOrderPayment("paid")
	logger.OrderEvent(ctx, orderID, "MARKED_PAID", "payment_type", term.PaymentType, "payment_id", term.PaymentID)

	if err := gw.SendMessage(ctx, orderID, PayingMessage); err != nil {
		return err
	}
	return nil
}

func (f *fulfiller) markTick() {
	f.mu.Lock()
	f.lastTick = time.Now()
	f.mu.Unlock()
}

// Stats is safe to call from any goroutine.
func (f *fulfiller) Stats() types.OrderStats {
	f.mu.RLock()
	last := f.lastTick
	f.mu.RUnlock()

	return types.OrderStats{
		Seen:     f.seen.Len(),
		Paid:     f.paid.Len(),
		LastTick: last,
	}
}
