package engineobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/trace"
	"p2p-ad-bot/internal/types"
)

type observableReconciler struct {
	reconciler interfaces.Reconciler
}

type observableFulfiller struct {
	fulfiller interfaces.Fulfiller
}

var (
	_ interfaces.Reconciler = (*observableReconciler)(nil)
	_ interfaces.Fulfiller  = (*observableFulfiller)(nil)
)

func WrapReconciler(r interfaces.Reconciler) interfaces.Reconciler {
	return &observableReconciler{reconciler: r}
}

func WrapFulfiller(f interfaces.Fulfiller) interfaces.Fulfiller {
	return &observableFulfiller{fulfiller: f}
}

func (o *observableReconciler) ReconcileSide(ctx context.Context, sess *interfaces.Session, side types.Side) types.PhaseResult {
	ctx, span := trace.StartSpan(ctx, "engine.ReconcileSide")
	defer span.End()
	span.SetAttributes(attribute.String("side", side.String()))

	start := time.Now()
	logger.DebugSkip(ctx, 1, "Reconciling offers", "side", side.String(), "specs", len(sess.SpecsFor(side)))

	res := o.reconciler.ReconcileSide(ctx, sess, side)
	logResult(ctx, res, start)
	return res
}

func (o *observableFulfiller) ProcessOrders(ctx context.Context, sess *interfaces.Session) types.PhaseResult {
	ctx, span := trace.StartSpan(ctx, "engine.ProcessOrders")
	defer span.End()

	start := time.Now()
	logger.DebugSkip(ctx, 1, "Processing pending orders")

	res := o.fulfiller.ProcessOrders(ctx, sess)
	logResult(ctx, res, start)
	return res
}

func (o *observableFulfiller) Stats() types.OrderStats {
	return o.fulfiller.Stats()
}

func logResult(ctx context.Context, res types.PhaseResult, start time.Time) {
	fields := []any{
		"phase", res.Phase,
		"attempted", res.Attempted,
		"succeeded", res.Succeeded,
		"skipped", res.Skipped,
		"failed", len(res.Errs),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	// Each failure was already logged with its own context where it happened
	if len(res.Errs) > 0 {
		logger.WarnSkip(ctx, 2, "Phase completed with failures", fields...)
		return
	}
	logger.InfoSkip(ctx, 2, "Phase completed", fields...)
}
