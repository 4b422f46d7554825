package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kpiconsole/internal/domain/announcements"
	"kpiconsole/internal/domain/audit"
	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/domain/dashboard"
	"kpiconsole/internal/domain/notifications"
	"kpiconsole/internal/domain/reports"
	"kpiconsole/internal/domain/roster"
	"kpiconsole/internal/domain/transmissions"
	"kpiconsole/internal/platform/config"
	"kpiconsole/internal/platform/jobs"
	"kpiconsole/internal/platform/metrics"
	"kpiconsole/internal/platform/store"
	adminhandler "kpiconsole/internal/transport/http/handlers/admin"
	announcementshandler "kpiconsole/internal/transport/http/handlers/announcements"
	audithandler "kpiconsole/internal/transport/http/handlers/audit"
	authhandler "kpiconsole/internal/transport/http/handlers/auth"
	dashboardhandler "kpiconsole/internal/transport/http/handlers/dashboard"
	eventshandler "kpiconsole/internal/transport/http/handlers/events"
	jobshandler "kpiconsole/internal/transport/http/handlers/jobs"
	notificationshandler "kpiconsole/internal/transport/http/handlers/notifications"
	reportshandler "kpiconsole/internal/transport/http/handlers/reports"
	transmissionshandler "kpiconsole/internal/transport/http/handlers/transmissions"
	"kpiconsole/internal/transport/http/middleware"
)

// App holds the wired services and the HTTP router.
type App struct {
	Config        config.Config
	Storage       *Storage
	Router        http.Handler
	Audit         *audit.Service
	Notifications *notifications.Service
	Transmissions *transmissions.Service
	Roster        *roster.Service
	Auth          *auth.Service
	Announcements *announcements.Service
	Dashboard     *dashboard.Service
	Reports       *reports.Service
	Jobs          *jobs.Service
	Snapshot      jobs.Task
	Registry      *prometheus.Registry
}

// New opens storage, seeds departments and builds the router. Background
// workers are not started until Start.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	registry := prometheus.NewRegistry()
	rec := metrics.New(cfg.MetricsEnabled, registry)
	if cfg.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	storage, err := OpenStorage(ctx, cfg, store.WithObserver(rec))
	if err != nil {
		return nil, err
	}
	st := storage.Store

	app := &App{Config: cfg, Storage: storage, Registry: registry}
	app.Audit = audit.New(st)
	app.Notifications = notifications.New(st)
	app.Transmissions = transmissions.New(transmissions.NewStore(st), app.Audit, app.Notifications)
	app.Transmissions.Recorder = rec
	app.Roster = roster.New(st, app.Audit, cfg.DepartmentSecret, cfg.DefaultPasskey, app.Transmissions, app.Notifications)
	if err := app.Roster.Seed(ctx, cfg.SeedDepartments); err != nil {
		storage.Close()
		return nil, fmt.Errorf("seed departments: %w", err)
	}
	app.Auth = auth.NewService(app.Roster, app.Audit, cfg.Secret(), cfg.TokenTTL)
	app.Announcements = announcements.New(st, app.Audit)

	templates, err := config.LoadTemplates(cfg.TemplatesFile)
	if err != nil {
		storage.Close()
		return nil, err
	}
	app.Dashboard = dashboard.New(app.Transmissions, app.Notifications, app.Announcements, app.Roster, templates)
	app.Reports = reports.NewService(app.Transmissions, app.Roster, app.Audit, storage.Cipher)

	app.Jobs = jobs.New(st)
	app.Jobs.Recorder = rec
	if cfg.SnapshotDir != "" {
		app.Snapshot = jobs.SnapshotTask(st, storage.Compressor, cfg.SnapshotDir, cfg.SnapshotKeep)
	}

	app.Router = app.routes(rec)
	return app, nil
}

func (a *App) routes(rec metrics.Recorder) http.Handler {
	cfg := a.Config
	st := a.Storage.Store
	window := time.Minute

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == config.EnvProduction))
	router.Use(middleware.Instrument(rec))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(a.Auth))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", metrics.Handler(a.Registry))
	}

	idempotency := middleware.NewIdempotencyStore(st)

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(a.Auth)
		authHandler.RegisterRoutes(r, middleware.LoginRateLimit(cfg.RateLimitPerMinute, window))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, window))

			transmissionsHandler := transmissionshandler.NewHandler(a.Transmissions, idempotency)
			transmissionsHandler.RegisterRoutes(r)

			dashboardHandler := dashboardhandler.NewHandler(a.Dashboard, a.Transmissions)
			dashboardHandler.RegisterRoutes(r)

			auditHandler := audithandler.NewHandler(a.Audit)
			auditHandler.RegisterRoutes(r)

			notificationsHandler := notificationshandler.NewHandler(a.Notifications)
			notificationsHandler.RegisterRoutes(r)

			announcementsHandler := announcementshandler.NewHandler(a.Announcements)
			announcementsHandler.RegisterRoutes(r)

			adminHandler := adminhandler.NewHandler(a.Roster)
			adminHandler.RegisterRoutes(r)

			reportsHandler := reportshandler.NewHandler(a.Reports, a.Jobs, cfg.ReportDir)
			reportsHandler.RegisterRoutes(r)

			jobsHandler := jobshandler.NewHandler(a.Jobs, a.Snapshot, a.Audit)
			jobsHandler.RegisterRoutes(r)
		})

		eventsHandler := eventshandler.NewHandler(st)
		eventsHandler.RegisterRoutes(r)
	})

	return router
}

// Start launches the store watcher, the job worker and the snapshot
// schedule. They stop when ctx ends.
func (a *App) Start(ctx context.Context) {
	a.Storage.Store.Start(ctx)
	a.Jobs.Start(ctx)
	if a.Snapshot != nil && a.Config.SnapshotInterval > 0 {
		a.Jobs.Schedule(ctx, jobs.JobStoreSnapshot, a.Config.SnapshotInterval, a.Snapshot)
	}
}

func (a *App) Close() {
	a.Storage.Close()
}

// Serve runs the API until ctx is cancelled, then drains in-flight requests.
func Serve(ctx context.Context, cfg config.Config) error {
	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.Start(runCtx)

	// No WriteTimeout: /api/v1/events holds its response open.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("kpi console listening", "addr", cfg.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
