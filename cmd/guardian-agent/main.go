// Package main provides the entry point for the GUARDIAN session agent.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yusufmo1/GUARDIAN-sub000/internal/server"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/audit"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/authstate"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/backend"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/config"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/database/migrate"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/health"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/metrics"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/monitor"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/notify"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/session"
	sessionpg "github.com/yusufmo1/GUARDIAN-sub000/pkg/session/postgres"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/userdata"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type agentOptions struct {
	configPath  string
	showVersion bool
}

func parseFlags() agentOptions {
	opts := agentOptions{}
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

func buildVault(cfg *config.Config) (session.Vault, error) {
	switch cfg.Vault.Mode {
	case "file":
		return session.NewFileVault(cfg.Vault.Path, []byte(cfg.Vault.Secret))
	default:
		return session.NewMemoryVault(), nil
	}
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("guardian-agent version %s\n", server.Version)
		return nil
	}

	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return err
		}
	}

	ctx := setupSignalHandler()

	vault, err := buildVault(cfg)
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	ctrlOpts := []authstate.Option{
		authstate.WithMetrics(m),
		authstate.WithAudit(audit.SlogLogger{}),
		authstate.WithStores(
			userdata.NewDocumentStore(),
			userdata.NewAnalysisStore(),
			userdata.NewChatStore(),
		),
	}

	var db *sql.DB
	if cfg.Database.Enabled {
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("opening session database: %w", err)
		}
		defer func() { _ = db.Close() }()
		if err := migrate.Run(db); err != nil {
			return err
		}
		ctrlOpts = append(ctrlOpts, authstate.WithSessionRecorder(sessionpg.New(db)))
	}

	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	})
	ctrl := authstate.New(client, vault, ctrlOpts...)

	mon := monitor.New(monitor.Config{
		Interval:           cfg.Monitor.Interval,
		WarningThreshold:   cfg.Monitor.WarningThreshold,
		RefreshThreshold:   cfg.Monitor.RefreshThreshold,
		WarningEvery:       cfg.Monitor.WarningEvery,
		AutoLogoutOnExpiry: cfg.Monitor.AutoLogoutOnExpiry,
	}, ctrl, notify.SlogNotifier{})

	checker := health.NewChecker()
	checker.SetProbe(func() bool { return !ctrl.Loading() })
	srv := server.New(server.Config{Address: cfg.Agent.Address}, ctrl, checker, registry)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	if err := ctrl.Initialize(ctx); err != nil {
		// A rejected persisted token resolves to a clean unauthenticated
		// state; the agent stays up so the user can sign in again.
		fmt.Fprintf(os.Stderr, "session restore failed: %v\n", err)
	}
	mon.Start()
	checker.SetReady()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("local api: %w", err)
		}
	}

	mon.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
