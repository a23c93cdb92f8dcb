// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/guideli/guideli/internal/auth"
	"github.com/guideli/guideli/internal/auth/postgres"
	"github.com/guideli/guideli/internal/config"
	"github.com/guideli/guideli/internal/httpapi"
	"github.com/guideli/guideli/internal/logging"
	"github.com/guideli/guideli/internal/notify"
	"github.com/guideli/guideli/internal/oauth"
	"github.com/guideli/guideli/internal/observability"
	"github.com/guideli/guideli/internal/store"
	"github.com/guideli/guideli/pkg/errutil"
)

const (
	serviceName     = "guideli"
	shutdownTimeout = 10 * time.Second
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 120 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the identity HTTP API",
		Long: `Start the HTTP API. On startup the database schema is migrated and the
default roles and super-admin account are seeded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.BindFlags(cmd.Flags())

	return cmd
}

func (d *ServeDeps) withDefaults() {
	if d.PoolOpener == nil {
		d.PoolOpener = func(ctx context.Context, databaseURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
			return store.Open(ctx, databaseURL, store.WithLogger(logger))
		}
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = defaultMigratorFactory
	}
	if d.StoreFactory == nil {
		d.StoreFactory = func(pool *pgxpool.Pool) (*auth.CredentialStore, error) {
			return postgres.NewCredentialStore(pool, auth.NewArgon2idHasher())
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readiness observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readiness, observability.WithLogger(logger))
		}
	}
}

func defaultMigratorFactory(databaseURL string) (Migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// applyMigrations brings the schema up to date.
func applyMigrations(factory func(string) (Migrator, error), databaseURL string) error {
	m, err := factory(databaseURL)
	if err != nil {
		return err
	}
	upErr := m.Up()
	closeErr := m.Close()
	if upErr != nil {
		return upErr
	}
	return closeErr
}

// runServeWithDeps starts the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger := logging.SetDefault(serviceName, version, cfg.LogFormat)
	logger.Info("starting guideli",
		"http_addr", cfg.HTTPAddr,
		"metrics_addr", cfg.MetricsAddr,
		"log_format", cfg.LogFormat,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := deps.PoolOpener(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if err := applyMigrations(deps.MigratorFactory, cfg.DatabaseURL); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	logger.Info("database schema up to date")

	var ready atomic.Bool

	// Metrics are always recorded; they are only exported when a metrics
	// address is configured.
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, ready.Load, logger)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	defer stopObservability(obsServer, logger)

	notifier, closeNotifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	credentials, err := deps.StoreFactory(pool)
	if err != nil {
		return oops.With("operation", "create credential store").Wrap(err)
	}
	svc, err := buildServices(credentials, cfg, logger, notifier, metrics)
	if err != nil {
		return err
	}

	res, err := svc.seeder.Run(ctx, cfg.Seed)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "seed").Wrap(err)
	}
	logger.Info("seed data ready", "roles_created", res.RolesCreated, "super_admin_created", res.SuperAdminCreated)

	var google httpapi.FederatedProvider
	if cfg.OAuth.Google.Enabled() {
		g := cfg.OAuth.Google
		provider, err := oauth.NewGoogleProvider(g.ClientID, g.ClientSecret, g.RedirectURL)
		if err != nil {
			return err
		}
		google = provider
		logger.Info("google login enabled")
	}

	api, err := httpapi.New(httpapi.Deps{
		Authenticator: svc.authenticator,
		Identity:      svc.identity,
		Roles:         svc.roles,
		Google:        google,
		Recorder:      metrics,
		Logger:        logger,
	}, httpapi.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  strings.HasPrefix(cfg.OAuth.Google.RedirectURL, "https://"),
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTPAddr).Wrap(err)
	}
	httpServer := newHTTPServer(api.Routes(), logger)

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ready.Store(true)
	cmd.Println("guideli started")
	logger.Info("guideli ready", "http_addr", listener.Addr().String())

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case serveErr = <-errChan:
		errutil.LogError(logger, "http server failed", serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}

	logger.Info("shutdown complete")
	if serveErr != nil {
		return oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
	}
	return nil
}

// newNotifier returns the NATS sender when nats.url is set and the log sender
// otherwise, plus a function that releases it.
func newNotifier(cfg *config.Config, logger *slog.Logger) (auth.Notifier, func(), error) {
	if cfg.NATS.URL == "" {
		logger.Info("notifications are logged; set nats.url to publish them")
		return notify.NewLogSender(logger), func() {}, nil
	}
	sender, err := notify.ConnectNATS(cfg.NATS.URL, cfg.NATS.Subject, nats.Name(serviceName))
	if err != nil {
		return nil, nil, err
	}
	logger.Info("publishing notifications to NATS", "subject", cfg.NATS.Subject)
	return sender, sender.Close, nil
}

func stopObservability(s ObservabilityServer, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It returns
// when the channel closes or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

func newHTTPServer(handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
