package engineobs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/types"
)

type stubReconciler struct {
	res   types.PhaseResult
	calls int
}

func (s *stubReconciler) ReconcileSide(ctx context.Context, sess *interfaces.Session, side types.Side) types.PhaseResult {
	s.calls++
	return s.res
}

type stubFulfiller struct {
	res   types.PhaseResult
	stats types.OrderStats
}

func (s *stubFulfiller) ProcessOrders(ctx context.Context, sess *interfaces.Session) types.PhaseResult {
	return s.res
}

func (s *stubFulfiller) Stats() types.OrderStats { return s.stats }

func TestWrapReconcilerPassesThroughAndLogs(t *testing.T) {
	var buf bytes.Buffer
	_ = logger.InitWithConfig(logger.LogConfig{Level: "INFO", Format: "text"}, &buf)

	inner := &stubReconciler{res: types.PhaseResult{Phase: "reconcile_sell", Attempted: 2, Succeeded: 2}}
	res := WrapReconciler(inner).ReconcileSide(context.Background(), &interfaces.Session{}, types.SideSell)

	if inner.calls != 1 {
		t.Fatalf("expected one inner call, got %d", inner.calls)
	}
	if res.Succeeded != 2 {
		t.Errorf("expected result to pass through, got %+v", res)
	}
	if !strings.Contains(buf.String(), "Phase completed") || !strings.Contains(buf.String(), "reconcile_sell") {
		t.Errorf("expected phase log, got %q", buf.String())
	}
}

func TestWrapFulfillerLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	_ = logger.InitWithConfig(logger.LogConfig{Level: "INFO", Format: "text"}, &buf)

	inner := &stubFulfiller{
		res:   types.PhaseResult{Phase: "process_orders", Attempted: 1, Errs: []error{errors.New("boom")}},
		stats: types.OrderStats{Seen: 4, Paid: 2},
	}
	wrapped := WrapFulfiller(inner)
	res := wrapped.ProcessOrders(context.Background(), &interfaces.Session{})

	if res.Err() == nil {
		t.Error("expected failure to pass through")
	}
	out := buf.String()
	if !strings.Contains(out, "Phase completed with failures") || !strings.Contains(out, "level=WARN") {
		t.Errorf("expected warning summary, got %q", out)
	}
	if !strings.Contains(out, "failed=1") {
		t.Errorf("expected failure count in summary, got %q", out)
	}
	if strings.Contains(out, "boom") || strings.Contains(out, "level=ERROR") {
		t.Errorf("phase summary repeated the failure, got %q", out)
	}
	if st := wrapped.Stats(); st.Seen != 4 || st.Paid != 2 {
		t.Errorf("expected stats to pass through, got %+v", st)
	}
}
