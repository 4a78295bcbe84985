package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/metrics"
	"p2p-ad-bot/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	must(initializeSystem())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, configPath(os.Args))
	must(err)

	m := metrics.New()
	build := newSessionFactory(m)
	sched := initializeScheduler(m)

	if cfg != nil {
		sess, err := build(ctx, cfg)
		must(err)
		sched.Swap(sess)
	}

	cmdr, err := initializeCommander(ctx, cfg, sched, build)
	must(err)
	if cmdr == nil && cfg == nil {
		log.Fatal("no configuration file and no telegram token: nothing to run")
	}

	addr := os.Getenv("METRICS_ADDR")
	if cfg != nil && cfg.MetricsAddr != "" {
		addr = cfg.MetricsAddr
	}
	if addr != "" {
		srv := startMetricsServer(ctx, addr, m)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var wg sync.WaitGroup
	if cmdr != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cmdr.Run(ctx); err != nil {
				logger.ErrorWithErr(ctx, "Command surface stopped", err)
			}
		}()
	}

	logger.Info(ctx, "Bot started")
	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorWithErr(ctx, "Poll loop stopped", err)
	}

	logger.Info(ctx, "Shutting down...")
	stop()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := trace.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "Tracer shutdown failed", "error", err)
	}
}
