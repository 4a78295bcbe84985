package interfaces

import (
	"context"

	"p2p-ad-bot/internal/types"
)

// VenueGateway is the only path to the trading venue. Implementations
// normalize venue field naming so callers never see raw payloads.
type VenueGateway interface {
	// ListOffers returns the account's online ads for one side
	ListOffers(ctx context.Context, side types.Side) ([]types.LiveOffer, error)

	// UpdateOffer re-issues an ad with the given fields
	UpdateOffer(ctx context.Context, upd types.OfferUpdate) error

	// ListPendingOrders returns orders waiting for operator action
	ListPendingOrders(ctx context.Context) ([]types.Order, error)

	// GetOrderDetail fetches an order including its payment terms
	GetOrderDetail(ctx context.Context, orderID string) (types.OrderDetail, error)

	// MarkAsPaid tells the venue the buyer side has paid via the given term
	MarkAsPaid(ctx context.Context, orderID, paymentType, paymentID string) error

	// GetBalance returns the funding balance for an account type
	GetBalance(ctx context.Context, accountType string) (types.Balance, error)

	// SendMessage posts a chat message into the order's conversation
	SendMessage(ctx context.Context, orderID, text string) error
}
