package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/talentmanager/talentmanager/server/internal/alerts"
	"github.com/talentmanager/talentmanager/server/internal/api"
	"github.com/talentmanager/talentmanager/server/internal/auth"
	"github.com/talentmanager/talentmanager/server/internal/config"
	"github.com/talentmanager/talentmanager/server/internal/health"
	"github.com/talentmanager/talentmanager/server/internal/journal"
	"github.com/talentmanager/talentmanager/server/internal/metrics"
	"github.com/talentmanager/talentmanager/server/internal/table"
	"github.com/talentmanager/talentmanager/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// load reads the config and opens the employee table it points at.
func load(configPath string) (*config.Config, *alerts.Evaluator, *table.Table, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	eval, err := alerts.NewEvaluator(cfg.Alerts.Rules)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("alert rules: %w", err)
	}
	tbl, err := table.Open(cfg.Data.Path, table.Options{IDColumn: cfg.Data.IDColumn, Alerts: eval})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open employee table: %w", err)
	}
	return cfg, eval, tbl, nil
}

func runCheck(configPath string) error {
	_, _, tbl, err := load(configPath)
	if err != nil {
		slog.Error("check failed", "err", err)
		return err
	}
	st := tbl.Stats()
	slog.Info("check passed",
		"path", tbl.Path(),
		"columns", len(tbl.Columns()),
		"employees", st.TotalEmployees,
		"attrition_rate", st.AttritionRate,
		"alerts", len(tbl.Alerts()),
	)
	return nil
}

func runServe(parent context.Context, configPath string) error {
	slog.Info("talentmanager-server starting", "config", configPath)

	cfg, eval, tbl, err := load(configPath)
	if errors.Is(err, table.ErrMissingFile) {
		slog.Error("employee file not found", "err", err)
		return err
	}
	if err != nil {
		slog.Error("startup failed", "err", err)
		return err
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"grpc_port", cfg.Server.GRPCPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"data_path", cfg.Data.Path,
		"storage", cfg.Storage.Backend,
	)
	slog.Info("employee table loaded", "employees", tbl.Len(), "columns", len(tbl.Columns()))

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	apiKey := auth.NewAPIKey(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key())

	// Prometheus registry; counts follow table events.
	m := metrics.New()
	m.Track(tbl)

	// Webhook notifications for appended employees that match a rule.
	notifier := alerts.NewNotifier(eval, cfg.Alerts.Webhooks, tbl.IDColumn())
	tbl.Subscribe(func(ev table.Event) {
		if ev.Kind == table.EventAdded {
			notifier.Notify(ev.Record)
		}
	})

	// Optional journal of appended records.
	var jr api.Journal
	if cfg.Storage.Backend != "" {
		j, err := journal.Open(ctx, cfg.Storage.Backend, cfg.Storage.DSN(), tbl.IDColumn())
		if err != nil {
			slog.Error("failed to open journal", "backend", cfg.Storage.Backend, "err", err)
			return err
		}
		defer j.Close()
		go j.Run(ctx, cfg.Storage.Retention)
		jr = j
		slog.Info("journal enabled", "backend", cfg.Storage.Backend, "retention", cfg.Storage.Retention)
	}

	if cfg.Data.Watch {
		go func() {
			if err := tbl.Watch(ctx); err != nil {
				slog.Error("file watcher stopped", "err", err)
			}
		}()
	}

	// gRPC health service with optional API key authentication.
	reporter := health.New()
	reporter.Track(tbl)
	var grpcSrv *grpc.Server
	if cfg.Server.GRPCPort > 0 {
		grpcSrv = grpc.NewServer(
			grpc.UnaryInterceptor(apiKey.UnaryInterceptor()),
			grpc.StreamInterceptor(apiKey.StreamInterceptor()),
		)
		reporter.Register(grpcSrv)

		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
			return err
		}
		go func() {
			slog.Info("gRPC health listening", "port", cfg.Server.GRPCPort)
			if err := grpcSrv.Serve(lis); err != nil {
				slog.Error("gRPC server stopped", "err", err)
			}
		}()
	}

	// WebSocket hub: periodic stats plus a push on every table change.
	hub := ws.New(tbl, cfg.Server.Stream.Interval)
	hub.Track(tbl)
	go hub.Run(ctx)

	httpMux := http.NewServeMux()
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", m.Handler())
	httpMux.Handle("/", api.New(tbl, api.Options{Auth: apiKey, Metrics: m, Journal: jr}))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           api.WithCORS(httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		slog.Error("HTTP server stopped", "err", serveErr)
		cancel()
	}

	slog.Info("talentmanager-server shutting down")
	reporter.Shutdown()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "err", err)
	}
	return serveErr
}
