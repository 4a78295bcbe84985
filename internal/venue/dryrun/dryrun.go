// Package dryrun keeps venue reads live while suppressing every write.
package dryrun

import (
	"context"

	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/types"
)

type gateway struct {
	interfaces.VenueGateway
}

// Wrap returns a gateway whose UpdateOffer, MarkAsPaid and SendMessage
// only log what they would have sent.
func Wrap(gw interfaces.VenueGateway) interfaces.VenueGateway {
	return &gateway{VenueGateway: gw}
}

func (g *gateway) UpdateOffer(ctx context.Context, upd types.OfferUpdate) error {
	logger.Info(ctx, "DRY_RUN: skipping offer update",
		"offer_id", upd.ID,
		"price", upd.Price.String(),
		"quantity", upd.Quantity.String(),
		"min_amount", upd.MinAmount.String(),
		"max_amount", upd.MaxAmount.String(),
		"remark", upd.Remark,
	)
	return nil
}

func (g *gateway) MarkAsPaid(ctx context.Context, orderID, paymentType, paymentID string) error {
	logger.Info(ctx, "DRY_RUN: skipping mark as paid",
		"order_id", orderID,
		"payment_type", paymentType,
		"payment_id", paymentID,
	)
	return nil
}

func (g *gateway) SendMessage(ctx context.Context, orderID, text string) error {
	logger.Info(ctx, "DRY_RUN: skipping order message", "order_id", orderID, "text", text)
	return nil
}
