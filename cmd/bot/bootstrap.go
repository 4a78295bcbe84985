package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"p2p-ad-bot/internal/command/telegram"
	"p2p-ad-bot/internal/engine"
	"p2p-ad-bot/internal/engine/engineobs"
	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/metrics"
	"p2p-ad-bot/internal/scheduler"
	"p2p-ad-bot/internal/store"
	"p2p-ad-bot/internal/trace"
	"p2p-ad-bot/internal/venue/bybit"
	"p2p-ad-bot/internal/venue/dryrun"
	"p2p-ad-bot/internal/venue/venueobs"
)

// initializeSystem initializes environment, logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Tracing is optional; the bot runs without it
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// configPath resolves the configuration file: first argument, then
// CONFIG_PATH, then config.yaml.
func configPath(args []string) string {
	if len(args) > 1 && args[1] != "" {
		return args[1]
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

// loadConfig returns nil without error when the file does not exist, so
// the bot can start and wait for a configuration upload.
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err == nil {
		logger.Info(ctx, "Configuration loaded", "path", path, "mode", cfg.Mode, "ads", len(cfg.Ads))
		return cfg, nil
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		logger.Warn(ctx, "No configuration file, waiting for an upload", "path", path)
		return nil, nil
	}
	logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
	return nil, err
}

// initializeGateway builds the venue stack for one configuration:
// live client, optional dry-run guard, then observability.
func initializeGateway(ctx context.Context, cfg *store.Config, m *metrics.Metrics) (interfaces.VenueGateway, error) {
	client, err := bybit.New(bybit.Params{
		APIKey:             cfg.Bybit.APIKey,
		APISecret:          cfg.Bybit.APISecret,
		Testnet:            cfg.Bybit.Testnet,
		BaseURL:            cfg.Bybit.BaseURL,
		RecvWindow:         time.Duration(cfg.Bybit.RecvWindowMs) * time.Millisecond,
		Timeout:            time.Duration(cfg.Bybit.TimeoutSeconds) * time.Second,
		RateLimitPerSecond: cfg.Bybit.RateLimitPerSecond,
		Coin:               cfg.Bybit.Coin,
		Debug:              logger.IsDebugEnabled(),
	})
	if err != nil {
		return nil, err
	}

	var gw interfaces.VenueGateway = client
	if cfg.Mode == store.ModeDryRun {
		logger.Warn(ctx, "Running in DRY_RUN mode - venue writes will be skipped")
		gw = dryrun.Wrap(gw)
	}
	if cfg.Bybit.Testnet {
		logger.Info(ctx, "Using Bybit testnet")
	}

	// Wrap with observability middleware
	return venueobs.Wrap(gw, m), nil
}

// newSessionFactory returns the constructor shared by startup and
// configuration uploads.
func newSessionFactory(m *metrics.Metrics) telegram.SessionFactory {
	return func(ctx context.Context, cfg *store.Config) (*interfaces.Session, error) {
		specs, err := cfg.OfferSpecs()
		if err != nil {
			return nil, err
		}
		gw, err := initializeGateway(ctx, cfg, m)
		if err != nil {
			return nil, err
		}
		return &interfaces.Session{
			Gateway:     gw,
			Specs:       specs,
			Interval:    cfg.Interval(),
			AccountType: cfg.Bybit.AccountType,
			LoadedAt:    time.Now(),
		}, nil
	}
}

// initializeScheduler wires both engines, with observability, into the
// poll loop
func initializeScheduler(m *metrics.Metrics) *scheduler.Scheduler {
	return scheduler.New(
		engineobs.WrapReconciler(engine.NewReconciler(m)),
		engineobs.WrapFulfiller(engine.NewFulfiller(m)),
		m,
	)
}

// initializeCommander starts the Telegram surface when a token is known.
// It returns nil, nil when no token is configured.
func initializeCommander(ctx context.Context, cfg *store.Config, sched *scheduler.Scheduler, build telegram.SessionFactory) (*telegram.Commander, error) {
	token := os.Getenv("TELEGRAM_TOKEN")
	allowed := parseChatIDs(ctx, os.Getenv("TELEGRAM_ALLOWED_CHAT_IDS"))
	if cfg != nil {
		if cfg.Telegram.Token != "" {
			token = cfg.Telegram.Token
		}
		if len(cfg.Telegram.AllowedChatIDs) > 0 {
			allowed = cfg.Telegram.AllowedChatIDs
		}
	}
	if token == "" {
		logger.Warn(ctx, "No telegram token configured - operator commands disabled")
		return nil, nil
	}
	if len(allowed) == 0 {
		logger.Warn(ctx, "telegram.allowed_chat_ids is empty - any chat may upload a configuration")
	}
	return telegram.New(token, allowed, sched, build)
}

func parseChatIDs(ctx context.Context, s string) []int64 {
	var ids []int64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			logger.Warn(ctx, "Ignoring invalid chat id", "value", f)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// startMetricsServer serves /metrics and /healthz until ctx is done.
func startMetricsServer(ctx context.Context, addr string, m *metrics.Metrics) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info(ctx, "Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Metrics server failed", err)
		}
	}()
	return srv
}
