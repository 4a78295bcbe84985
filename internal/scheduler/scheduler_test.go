package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"p2p-ad-bot/internal/engine"
	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/types"
	"p2p-ad-bot/internal/venue/venuetest"
)

type recorder struct {
	mu    sync.Mutex
	steps []string
	sess  []*interfaces.Session
}

func (r *recorder) add(step string, sess *interfaces.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
	r.sess = append(r.sess, sess)
}

func (r *recorder) snapshot() ([]string, []*interfaces.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...), append([]*interfaces.Session(nil), r.sess...)
}

type fakeReconciler struct {
	rec    *recorder
	onCall func(side types.Side)
	err    error
}

func (f *fakeReconciler) ReconcileSide(ctx context.Context, sess *interfaces.Session, side types.Side) types.PhaseResult {
	f.rec.add("reconcile_"+side.String(), sess)
	if f.onCall != nil {
		f.onCall(side)
	}
	res := types.PhaseResult{Phase: "reconcile"}
	if f.err != nil {
		res.Fail(f.err)
	}
	return res
}

type fakeFulfiller struct {
	rec   *recorder
	panic bool
}

func (f *fakeFulfiller) ProcessOrders(ctx context.Context, sess *interfaces.Session) types.PhaseResult {
	f.rec.add("orders", sess)
	if f.panic {
		panic("venue returned garbage")
	}
	return types.PhaseResult{Phase: "process_orders"}
}

func (f *fakeFulfiller) Stats() types.OrderStats { return types.OrderStats{} }

func TestTickOrder(t *testing.T) {
	rec := &recorder{}
	s := New(&fakeReconciler{rec: rec}, &fakeFulfiller{rec: rec}, nil)

	if err := s.Tick(context.Background(), &interfaces.Session{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps, _ := rec.snapshot()
	want := []string{"reconcile_SELL", "reconcile_BUY", "orders"}
	if len(steps) != len(want) {
		t.Fatalf("expected %v, got %v", want, steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], steps[i])
		}
	}
}

func TestTickContinuesAfterReconcileFailure(t *testing.T) {
	rec := &recorder{}
	s := New(&fakeReconciler{rec: rec, err: errors.New("rejected")}, &fakeFulfiller{rec: rec}, nil)

	err := s.Tick(context.Background(), &interfaces.Session{})
	if err == nil {
		t.Fatal("expected joined error")
	}
	steps, _ := rec.snapshot()
	if len(steps) != 3 || steps[2] != "orders" {
		t.Errorf("expected orders to run after failures, got %v", steps)
	}
}

func TestTickRecoversPanic(t *testing.T) {
	rec := &recorder{}
	s := New(&fakeReconciler{rec: rec}, &fakeFulfiller{rec: rec, panic: true}, nil)

	err := s.Tick(context.Background(), &interfaces.Session{})
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestTickWithoutSession(t *testing.T) {
	rec := &recorder{}
	s := New(&fakeReconciler{rec: rec}, &fakeFulfiller{rec: rec}, nil)

	if err := s.Tick(context.Background(), nil); err == nil {
		t.Error("expected error without session")
	}
	if steps, _ := rec.snapshot(); len(steps) != 0 {
		t.Errorf("expected no phases, got %v", steps)
	}
}

func TestSwapTakesEffectNextTick(t *testing.T) {
	rec := &recorder{}
	first := &interfaces.Session{Interval: time.Millisecond}
	second := &interfaces.Session{Interval: time.Millisecond}

	var s *Scheduler
	swapped := false
	r := &fakeReconciler{rec: rec, onCall: func(side types.Side) {
		if !swapped {
			swapped = true
			s.Swap(second)
		}
	}}
	s = New(r, &fakeFulfiller{rec: rec}, nil)
	s.Swap(first)

	_ = s.Tick(context.Background(), s.Current())
	_ = s.Tick(context.Background(), s.Current())

	_, sessions := rec.snapshot()
	if len(sessions) != 6 {
		t.Fatalf("expected 6 phase calls, got %d", len(sessions))
	}
	for i := 0; i < 3; i++ {
		if sessions[i] != first {
			t.Errorf("call %d: expected first session for the whole in-flight tick", i)
		}
	}
	for i := 3; i < 6; i++ {
		if sessions[i] != second {
			t.Errorf("call %d: expected second session after swap", i)
		}
	}
}

func TestRunWaitsForSessionAndStops(t *testing.T) {
	rec := &recorder{}
	s := New(&fakeReconciler{rec: rec}, &fakeFulfiller{rec: rec}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if steps, _ := rec.snapshot(); len(steps) != 0 {
		t.Fatalf("expected no ticks before a session, got %v", steps)
	}

	s.Swap(&interfaces.Session{Interval: 5 * time.Millisecond})

	deadline := time.After(2 * time.Second)
	for {
		steps, _ := rec.snapshot()
		if len(steps) >= 6 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected at least two ticks, got %v", steps)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !s.Running() {
		t.Error("expected scheduler to report running")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunStopsBeforeFirstSession(t *testing.T) {
	s := New(&fakeReconciler{rec: &recorder{}}, &fakeFulfiller{rec: &recorder{}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTickWithEngines(t *testing.T) {
	gw := venuetest.New()
	gw.Offers[types.SideSell] = []types.LiveOffer{{ID: "ad-1", Remark: "#S1"}}
	gw.UpdateErrs["ad-1"] = &types.ExchangeAPIError{Op: "UpdateOffer", Message: "rejected"}
	gw.SetOrders(types.Order{ID: "O1", Side: types.SideSell})

	s := New(engine.NewReconciler(nil), engine.NewFulfiller(nil), nil)
	sess := &interfaces.Session{
		Gateway: gw,
		Specs: []types.OfferSpec{
			{Tag: "#S1", Side: types.SideSell, QuantityRule: types.QuantityRule{Raw: "1"}},
		},
	}

	err := s.Tick(context.Background(), sess)
	var apiErr *types.ExchangeAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected the update failure in the tick error, got %v", err)
	}
	if msgs := gw.MessagesFor("O1"); len(msgs) != 1 {
		t.Errorf("expected orders processed after reconcile failure, got %q", msgs)
	}
	if st := s.Stats(); st.Seen != 1 {
		t.Errorf("expected one seen order, got %+v", st)
	}
}

func TestFailedPhasesCountsJoinedErrors(t *testing.T) {
	rec := &recorder{}
	s := New(&fakeReconciler{rec: rec, err: errors.New("rejected")}, &fakeFulfiller{rec: rec}, nil)

	err := s.Tick(context.Background(), &interfaces.Session{})
	if got := failedPhases(err); got != 2 {
		t.Errorf("expected both reconcile phases counted, got %d (%v)", got, err)
	}
	if got := failedPhases(errors.New("tick panic")); got != 1 {
		t.Errorf("expected a plain error to count once, got %d", got)
	}
}
