// Command wardend runs the warden authorization service: permission and
// quota decisions, role and grant administration, and the audit trail,
// all backed by Redis.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wardenhq/warden/pkg/audit"
	"github.com/wardenhq/warden/pkg/auth"
	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/bootstrap"
	"github.com/wardenhq/warden/pkg/catalog"
	"github.com/wardenhq/warden/pkg/clock"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/kv"
	"github.com/wardenhq/warden/pkg/observability"
	"github.com/wardenhq/warden/pkg/ratelimit"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, nil).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, nil)

	store, err := kv.NewRedisStore(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to connect to redis")
		os.Exit(1)
	}
	defer store.Close()
	logger.WithField("url", cfg.Storage.URL).Info("connected to redis")

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Health probes ping the raw connection; everything else goes
	// through the instrumented decorator when metrics are on.
	var dataStore kv.Store = store
	if metrics != nil {
		dataStore = kv.NewInstrumentedStore(store, metrics)
	}

	clk := clock.System{}
	cat := catalog.NewStore(dataStore, cfg.Bootstrap.CatalogCacheTTL)
	customers := authz.NewStore(dataStore)
	var auditLogger audit.Logger = audit.NewKVLogger(dataStore, clk)
	if metrics != nil {
		auditLogger = audit.NewInstrumentedLogger(auditLogger, metrics)
	}
	engine := authz.NewEngine(customers, cat, clk)
	manager := authz.NewManager(customers, cat, auditLogger, clk)

	directory := bootstrap.NewStaticDirectory(cfg.Bootstrap.AdminDirectory)
	initializer := bootstrap.NewInitializer(cat, customers, manager, directory, cfg.Bootstrap.AdminEmails, logger, metrics)
	initializer.Schedule()

	router := buildRouter(cfg, dataStore, clk, engine, manager, auditLogger, metrics, logger)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: buildHealthRouter(cfg, store, registry),
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()
	go func() {
		logger.WithField("addr", apiServer.Addr).Info("warden listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}
	if err := healthServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("health server shutdown failed")
	}
}

// buildRouter assembles the API surface. Decision endpoints sit behind
// the check tier, record reads behind the read tier, and everything that
// mutates state behind the write or admin tiers.
func buildRouter(cfg *config.Config, store kv.Store, clk clock.Clock, engine *authz.Engine, manager *authz.Manager, auditLogger audit.Logger, metrics *observability.Metrics, logger *observability.Logger) http.Handler {
	authzHandlers := authz.NewHandlers(engine, manager, metrics, logger)
	auditHandlers := audit.NewHandlers(auditLogger)

	checkRouter := mux.NewRouter()
	readRouter := mux.NewRouter()
	writeRouter := mux.NewRouter()
	adminRouter := mux.NewRouter()

	authzHandlers.RegisterRoutes(checkRouter)
	authzHandlers.RegisterRoutes(readRouter)
	authzHandlers.RegisterRoutes(writeRouter)
	authzHandlers.RegisterRoutes(adminRouter)
	auditHandlers.RegisterRoutes(readRouter)

	tier := func(name string, tierCfg ratelimit.Config, next http.Handler) http.Handler {
		if !cfg.RateLimit.Enabled {
			return next
		}
		limiter := ratelimit.NewLimiter(store, clk, name, tierCfg, ratelimit.WithKeyPrefix(cfg.RateLimit.KeyPrefix))
		return ratelimit.NewMiddleware(limiter, metrics, logger).Handler(next)
	}

	check := tier("check", cfg.RateLimit.Check, checkRouter)
	read := tier("read", cfg.RateLimit.Read, readRouter)
	write := tier("write", cfg.RateLimit.Write, writeRouter)
	admin := tier("admin", cfg.RateLimit.Admin, adminRouter)

	root := mux.NewRouter()
	root.PathPrefix("/check/").Handler(check)
	root.Path("/customers/{id}/audit").Handler(read)
	root.Path("/customers/{id}/roles").Handler(admin)
	root.Path("/customers/{id}/permissions").Handler(admin)
	root.Path("/customers/{id}/quotas").Handler(admin)
	root.Path("/customers/{id}/quotas/reset").Handler(admin)
	root.Path("/customers/{id}/quotas/{resource}/increment").Handler(write)
	root.Path("/customers/{id}").Handler(read)

	return auth.PrincipalMiddleware(auth.RequirePrincipal(root))
}

// buildHealthRouter serves liveness, readiness, and metrics on the
// probe port, outside authentication and rate limiting.
func buildHealthRouter(cfg *config.Config, store *kv.RedisStore, registry *prometheus.Registry) http.Handler {
	probes := http.NewServeMux()
	checker := observability.NewHealthChecker(store)
	observability.RegisterHealthRoutes(probes, checker)
	if cfg.Observability.MetricsEnabled {
		probes.Handle("/metrics", observability.Handler(registry))
	}
	return probes
}
