// Package venuetest provides an in-memory VenueGateway that records calls.
package venuetest

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/types"
)

type Message struct {
	OrderID string
	Text    string
}

type Payment struct {
	OrderID     string
	PaymentType string
	PaymentID   string
}

// Gateway is a scripted venue. Fields may be set before use; recorded
// calls are read through the accessor methods.
type Gateway struct {
	mu sync.Mutex

	Offers  map[types.Side][]types.LiveOffer
	Orders  []types.Order
	Details map[string]types.OrderDetail
	Balance decimal.Decimal

	ListOffersErr  error
	ListOrdersErr  error
	BalanceErr     error
	UpdateErrs     map[string]error // keyed by offer id
	DetailErrs     map[string]error
	MarkPaidErrs   map[string]error
	SendMessageErr error

	listOfferCalls int
	balanceCalls   []string
	updates        []types.OfferUpdate
	payments       []Payment
	messages       []Message
	detailCalls    []string
}

var _ interfaces.VenueGateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		Offers:       make(map[types.Side][]types.LiveOffer),
		Details:      make(map[string]types.OrderDetail),
		UpdateErrs:   make(map[string]error),
		DetailErrs:   make(map[string]error),
		MarkPaidErrs: make(map[string]error),
	}
}

func (g *Gateway) ListOffers(ctx context.Context, side types.Side) ([]types.LiveOffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listOfferCalls++
	if g.ListOffersErr != nil {
		return nil, g.ListOffersErr
	}
	return append([]types.LiveOffer(nil), g.Offers[side]...), nil
}

func (g *Gateway) UpdateOffer(ctx context.Context, upd types.OfferUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates = append(g.updates, upd)
	return g.UpdateErrs[upd.ID]
}

func (g *Gateway) ListPendingOrders(ctx context.Context) ([]types.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ListOrdersErr != nil {
		return nil, g.ListOrdersErr
	}
	return append([]types.Order(nil), g.Orders...), nil
}

func (g *Gateway) GetOrderDetail(ctx context.Context, orderID string) (types.OrderDetail, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.detailCalls = append(g.detailCalls, orderID)
	if err := g.DetailErrs[orderID]; err != nil {
		return types.OrderDetail{}, err
	}
	return g.Details[orderID], nil
}

func (g *Gateway) MarkAsPaid(ctx context.Context, orderID, paymentType, paymentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments = append(g.payments, Payment{OrderID: orderID, PaymentType: paymentType, PaymentID: paymentID})
	return g.MarkPaidErrs[orderID]
}

func (g *Gateway) GetBalance(ctx context.Context, accountType string) (types.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balanceCalls = append(g.balanceCalls, accountType)
	if g.BalanceErr != nil {
		return types.Balance{}, g.BalanceErr
	}
	return types.Balance{Coin: "USDT", Available: g.Balance}, nil
}

func (g *Gateway) SendMessage(ctx context.Context, orderID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SendMessageErr != nil {
		return g.SendMessageErr
	}
	g.messages = append(g.messages, Message{OrderID: orderID, Text: text})
	return nil
}

func (g *Gateway) Updates() []types.OfferUpdate {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]types.OfferUpdate(nil), g.updates...)
}

func (g *Gateway) Payments() []Payment {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Payment(nil), g.payments...)
}

func (g *Gateway) Messages() []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Message(nil), g.messages...)
}

// MessagesFor returns the texts sent to one order, in order.
func (g *Gateway) MessagesFor(orderID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, m := range g.messages {
		if m.OrderID == orderID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (g *Gateway) DetailCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.detailCalls...)
}

func (g *Gateway) BalanceCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.balanceCalls...)
}

func (g *Gateway) ListOfferCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listOfferCalls
}

// SetOrders replaces the pending order list between ticks.
func (g *Gateway) SetOrders(orders ...types.Order) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Orders = orders
}
