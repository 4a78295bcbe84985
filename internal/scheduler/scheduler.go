// Package scheduler runs the fixed-cadence reconcile-then-fulfill loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/metrics"
	"p2p-ad-bot/internal/trace"
	"p2p-ad-bot/internal/types"
)

const DefaultInterval = 60 * time.Second

type Scheduler struct {
	reconciler interfaces.Reconciler
	fulfiller  interfaces.Fulfiller
	metrics    *metrics.Metrics

	session atomic.Pointer[interfaces.Session]
	ready   chan struct{}
	running atomic.Bool
}

func New(r interfaces.Reconciler, f interfaces.Fulfiller, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		reconciler: r,
		fulfiller:  f,
		metrics:    m,
		ready:      make(chan struct{}, 1),
	}
}

// Swap installs a new session as one unit. A tick already in flight keeps
// the session it started with; the next tick sees the new one.
func (s *Scheduler) Swap(sess *interfaces.Session) {
	prev := s.session.Swap(sess)
	if prev == nil {
		select {
		case s.ready <- struct{}{}:
		default:
		}
	}
}

// Current returns the active session, or nil before the first Swap.
func (s *Scheduler) Current() *interfaces.Session {
	return s.session.Load()
}

func (s *Scheduler) Stats() types.OrderStats {
	return s.fulfiller.Stats()
}

func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Run waits for the first session, then ticks until ctx is cancelled. It
// never returns because of a tick failure.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Current() == nil {
		logger.Info(ctx, "Waiting for configuration before starting poll loop")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ready:
		}
	}

	s.running.Store(true)
	defer s.running.Store(false)
	logger.Info(ctx, "Poll loop started")

	for {
		sess := s.Current()
		if err := s.Tick(ctx, sess); err != nil && ctx.Err() == nil {
			logger.Warn(ctx, "Tick finished with failures", "failed_phases", failedPhases(err))
		}

		timer := time.NewTimer(interval(sess))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info(ctx, "Poll loop stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tick runs reconcile SELL, reconcile BUY and order processing, strictly
// in that order. Phase failures are joined into the returned error and a
// panic is recovered into an error.
func (s *Scheduler) Tick(ctx context.Context, sess *interfaces.Session) (err error) {
	ctx, span := trace.StartSpan(ctx, "scheduler.Tick")
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
			logger.Error(ctx, "Recovered from panic in tick", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
		s.metrics.ObserveTick(time.Since(start), err)
	}()

	if sess == nil {
		return errors.New("no session loaded")
	}

	var errs []error
	for _, side := range []types.Side{types.SideSell, types.SideBuy} {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res := s.reconciler.ReconcileSide(ctx, sess, side)
		if e := res.Err(); e != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Phase, e))
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	res := s.fulfiller.ProcessOrders(ctx, sess)
	if e := res.Err(); e != nil {
		errs = append(errs, fmt.Errorf("%s: %w", res.Phase, e))
	}

	return errors.Join(errs...)
}

// failedPhases counts the phase errors Tick joined together.
func failedPhases(err error) int {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

func interval(sess *interfaces.Session) time.Duration {
	if sess == nil || sess.Interval <= 0 {
		return DefaultInterval
	}
	return sess.Interval
}
