package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/voxplane/nibblebill/internal/billing"
	"github.com/voxplane/nibblebill/internal/callctl"
	"github.com/voxplane/nibblebill/internal/config"
	"github.com/voxplane/nibblebill/internal/journal"
	"github.com/voxplane/nibblebill/internal/ledger"
	"github.com/voxplane/nibblebill/internal/mgmt"
	"github.com/voxplane/nibblebill/internal/monitoring"
)

// runBilld wires the daemon and blocks until shutdown.
func runBilld(configPath string, debug bool, portOverride int) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyEnvOverrides(cfg)
	if portOverride > 0 {
		cfg.Server.Port = portOverride
	}

	setupLogging(debug, cfg.Log.Level)

	store, err := ledger.NewRedis(cfg.Ledger.URL, cfg.Ledger.Timeout())
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	defer func() { _ = store.Close() }()
	log.Info().Str("url", cfg.RedactedLedgerURL()).Msg("connected to ledger")

	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled: cfg.Monitoring.Enabled,
		Path:    cfg.Monitoring.TelemetryPath,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer func() { _ = jrnl.Close() }()
		log.Info().Str("path", cfg.Journal.Path).Msg("charge journal open")
	}

	var ctl callctl.Controller
	if cfg.Platform.CallbackURL != "" {
		ctl = callctl.NewHTTPController(cfg.Platform.CallbackURL, cfg.Platform.Timeout())
		log.Info().Str("url", cfg.Platform.CallbackURL).Msg("dispatching call control to platform callback")
	} else {
		ctl = logController{}
		log.Warn().Msg("no platform callback configured, call-control actions are log-only")
	}

	engine := billing.New(billing.Settings{
		PercallMax:    cfg.Billing.PercallMaxAmt,
		PercallAction: cfg.Billing.ParsedPercallAction(),
		LowBalAmt:     cfg.Billing.LowBalAmt,
		LowBalAction:  cfg.Billing.ParsedLowBalAction(),
		NoBalAmt:      cfg.Billing.NoBalAmt,
		NoBalAction:   cfg.Billing.ParsedNoBalAction(),
		Heartbeat:     cfg.Billing.Heartbeat(),
	}, store, ctl, billing.Options{
		Telemetry: tracker,
		Metrics:   metrics,
		Journal:   jrnl,
	})

	tracker.RecordInit(&monitoring.InitEvent{
		Timestamp:   time.Now(),
		Event:       "billd_init",
		LedgerURL:   cfg.RedactedLedgerURL(),
		ServerPort:  cfg.Server.Port,
		HeartbeatMs: cfg.Billing.Heartbeat().Milliseconds(),
		LowBalAmt:   cfg.Billing.LowBalAmt,
		NoBalAmt:    cfg.Billing.NoBalAmt,
		PercallMax:  cfg.Billing.PercallMaxAmt,
		JournalOn:   cfg.Journal.Enabled,
	})

	srv := mgmt.New(cfg.Server, engine, mgmt.NewRegistry(), store, tracker, jrnl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// applyEnvOverrides lets deployment environments override file config.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("NIBBLEBILL_LEDGER_URL"); v != "" {
		cfg.Ledger.URL = v
	}
	if v := os.Getenv("NIBBLEBILL_CALLBACK_URL"); v != "" {
		cfg.Platform.CallbackURL = v
	}
}

// logController is the in-process fallback when no platform callback is
// configured. Actions are logged and reported successful so threshold
// latching behaves normally in dry-run deployments.
type logController struct{}

func (logController) Execute(_ context.Context, call callctl.Call, action callctl.Action) error {
	log.Info().Str("call", call.ID()).Str("action", action.String()).Msg("call-control action (dry run)")
	return nil
}

func (logController) EnableHeartbeat(_ context.Context, call callctl.Call, interval time.Duration) error {
	log.Info().Str("call", call.ID()).Dur("interval", interval).Msg("heartbeat request (dry run)")
	return nil
}
