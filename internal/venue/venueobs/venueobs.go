package venueobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/metrics"
	"p2p-ad-bot/internal/trace"
	"p2p-ad-bot/internal/types"
)

// observableGateway wraps a VenueGateway with logging, tracing and
// per-call latency metrics.
type observableGateway struct {
	gw      interfaces.VenueGateway
	metrics *metrics.Metrics
}

// Compile-time interface check
var _ interfaces.VenueGateway = (*observableGateway)(nil)

// Wrap wraps a gateway with observability middleware. m may be nil.
func Wrap(gw interfaces.VenueGateway, m *metrics.Metrics) interfaces.VenueGateway {
	return &observableGateway{gw: gw, metrics: m}
}

func (og *observableGateway) observe(op string, start time.Time, err error) {
	og.metrics.ObserveVenueCall(op, time.Since(start), err)
}

func (og *observableGateway) ListOffers(ctx context.Context, side types.Side) ([]types.LiveOffer, error) {
	ctx, span := trace.StartSpan(ctx, "venue.ListOffers")
	defer span.End()
	span.SetAttributes(attribute.String("side", side.String()))

	logger.DebugSkip(ctx, 1, "Listing offers", "side", side.String())

	start := time.Now()
	offers, err := og.gw.ListOffers(ctx, side)
	og.observe("listOffers", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list offers", err, "side", side.String())
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Offers listed", "side", side.String(), "count", len(offers))
	return offers, nil
}

func (og *observableGateway) UpdateOffer(ctx context.Context, upd types.OfferUpdate) error {
	ctx, span := trace.StartSpan(ctx, "venue.UpdateOffer")
	defer span.End()
	span.SetAttributes(attribute.String("offer_id", upd.ID))

	logger.DebugSkip(ctx, 1, "Updating offer",
		"offer_id", upd.ID,
		"price", upd.Price.String(),
		"quantity", upd.Quantity.String(),
	)

	start := time.Now()
	err := og.gw.UpdateOffer(ctx, upd)
	og.observe("updateOffer", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to update offer", err, "offer_id", upd.ID)
		return err
	}
	return nil
}

func (og *observableGateway) ListPendingOrders(ctx context.Context) ([]types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "venue.ListPendingOrders")
	defer span.End()

	start := time.Now()
	orders, err := og.gw.ListPendingOrders(ctx)
	og.observe("listPendingOrders", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list pending orders", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Pending orders listed", "count", len(orders))
	return orders, nil
}

func (og *observableGateway) GetOrderDetail(ctx context.Context, orderID string) (types.OrderDetail, error) {
	ctx, span := trace.StartSpan(ctx, "venue.GetOrderDetail")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	start := time.Now()
	detail, err := og.gw.GetOrderDetail(ctx, orderID)
	og.observe("getOrderDetail", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch order detail", err, "order_id", orderID)
		return types.OrderDetail{}, err
	}

	logger.DebugSkip(ctx, 1, "Order detail fetched", "order_id", orderID, "terms", len(detail.PaymentTerms))
	return detail, nil
}

func (og *observableGateway) MarkAsPaid(ctx context.Context, orderID, paymentType, paymentID string) error {
	ctx, span := trace.StartSpan(ctx, "venue.MarkAsPaid")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	logger.InfoSkip(ctx, 1, "Marking order paid",
		"order_id", orderID,
		"payment_type", paymentType,
		"payment_id", paymentID,
	)

	start := time.Now()
	err := og.gw.MarkAsPaid(ctx, orderID, paymentType, paymentID)
	og.observe("markAsPaid", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to mark order paid", err, "order_id", orderID)
		return err
	}
	return nil
}

func (og *observableGateway) GetBalance(ctx context.Context, accountType string) (types.Balance, error) {
	ctx, span := trace.StartSpan(ctx, "venue.GetBalance")
	defer span.End()

	start := time.Now()
	bal, err := og.gw.GetBalance(ctx, accountType)
	og.observe("getBalance", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch balance", err, "account_type", accountType)
		return types.Balance{}, err
	}

	logger.DebugSkip(ctx, 1, "Balance fetched", "account_type", accountType, "coin", bal.Coin, "available", bal.Available.String())
	return bal, nil
}

func (og *observableGateway) SendMessage(ctx context.Context, orderID, text string) error {
	ctx, span := trace.StartSpan(ctx, "venue.SendMessage")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	start := time.Now()
	err := og.gw.SendMessage(ctx, orderID, text)
	og.observe("sendMessage", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to send order message", err, "order_id", orderID)
		return err
	}

	logger.DebugSkip(ctx, 1, "Order message sent", "order_id", orderID)
	return nil
}
