package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"papertrader/src/config"
	"papertrader/src/engine"
	"papertrader/src/metrics"
	"papertrader/src/persistence"
	"papertrader/src/portfolio"
	"papertrader/src/seriesstore"
	"papertrader/src/server"
	"papertrader/src/simulator"
	"papertrader/src/strategies"
)

func main() {
	initializeLogging()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Ramping up Papertrader")

	store := seriesstore.NewStore().WithMaxPoints(cfg.Simulation.MaxSeriesLength)
	ledger := portfolio.NewLedger(cfg.Portfolio.InitialBalance, store).
		WithHistoryCap(cfg.Portfolio.HistoryCap)

	registry := strategies.NewRegistry()
	if err := registry.Register(strategies.NewMACrossover(cfg.Strategies.MovingAverage)); err != nil {
		slog.Error("Failed to register strategy", "error", err)
		os.Exit(1)
	}
	if err := registry.Register(strategies.NewRSIThreshold(cfg.Strategies.RSI)); err != nil {
		slog.Error("Failed to register strategy", "error", err)
		os.Exit(1)
	}

	// Resume a saved session when one exists. A missing or unreadable
	// snapshot just means a fresh start.
	var sessionStore *persistence.Store
	if cfg.Persistence.Enabled {
		sessionStore, err = persistence.Open(cfg.Persistence.Path)
		if err != nil {
			slog.Warn("Session persistence unavailable", "error", err)
			sessionStore = nil
		}
	}
	if sessionStore != nil {
		session, err := sessionStore.LoadLatestSession()
		switch {
		case err != nil:
			slog.Warn("Saved session unreadable, starting fresh", "path", cfg.Persistence.Path, "error", err)
		case session != nil:
			slog.Info("Resuming saved session", "session_id", session.SessionId, "saved_at", session.SavedAt)
			restoreSession(ledger, registry, session)
		}
	}

	eng := engine.New(cfg, simulator.NewClock(), store, ledger, registry)
	srv := server.New(cfg.Server, eng)
	if sessionStore != nil {
		srv.WithSessionSaver(func() error {
			return saveSession(sessionStore, eng)
		})
	}

	metricsWriter, err := metrics.FromConfig(cfg.Metrics, srv)
	if err != nil {
		slog.Warn("Metrics writer unavailable", "error", err)
	}
	if metricsWriter != nil {
		eng.WithMetricsWriter(metricsWriter)
	}

	eng.Start(ctx)
	srv.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	cancel()

	if sessionStore != nil {
		if err := saveSession(sessionStore, eng); err != nil {
			slog.Warn("Failed to save session", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Server shutdown failed", "error", err)
	}
	eng.Stop()
}

func restoreSession(ledger *portfolio.Ledger, registry *strategies.Registry, session *persistence.Session) {
	for symbol := range session.Holdings {
		ledger.Track(symbol)
	}
	ledger.Restore(session.Cash, session.InitialInvestment, session.Holdings, session.Transactions, session.ValueHistory)
	if session.SelectedAsset != "" {
		if err := ledger.SelectAsset(session.SelectedAsset); err != nil {
			slog.Warn("Saved selected asset no longer tradeable", "symbol", session.SelectedAsset)
		}
	}
	for _, custom := range session.CustomStrategies {
		rebuilt, err := strategies.NewRuleBased(custom.Name, custom.Rules)
		if err != nil {
			slog.Warn("Saved custom strategy no longer valid", "name", custom.Name, "error", err)
			continue
		}
		if err := registry.Register(rebuilt); err != nil {
			slog.Warn("Failed to re-register custom strategy", "name", custom.Name, "error", err)
		}
	}
	for _, saved := range session.Strategies {
		if err := registry.SetActive(saved.Name, saved.Active); err != nil {
			continue // strategy no longer registered
		}
		if len(saved.Params) > 0 {
			if err := registry.UpdateParams(saved.Name, saved.Params); err != nil {
				slog.Warn("Saved strategy params rejected", "name", saved.Name, "error", err)
			}
		}
	}
}

func saveSession(store *persistence.Store, eng *engine.Engine) error {
	snapshot := eng.Snapshot()
	session := persistence.Session{
		SavedAt:           time.Now(),
		Cash:              snapshot.Cash,
		InitialInvestment: snapshot.InitialInvestment,
		SelectedAsset:     snapshot.SelectedAsset,
		Holdings:          snapshot.Holdings,
		Transactions:      snapshot.Transactions,
		ValueHistory:      snapshot.ValueHistory,
		Strategies:        eng.Strategies(),
		CustomStrategies:  eng.CustomStrategies(),
	}
	if err := store.SaveSession(session); err != nil {
		return err
	}
	slog.Info("Session saved")
	return nil
}

func initializeLogging() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}
	switch strings.ToLower(logLevel) {
	case "debug":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})))
	case "info":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelInfo})))
	default:
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelInfo})))
	}
}
