package interfaces

import (
	"context"

	"p2p-ad-bot/internal/types"
)

type Reconciler interface {
	ReconcileSide(ctx context.Context, sess *Session, side types.Side) types.PhaseResult
}

type Fulfiller interface {
	ProcessOrders(ctx context.Context, sess *Session) types.PhaseResult
	Stats() types.OrderStats
}
