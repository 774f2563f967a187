package http

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	authzapp "github.com/astro-web3/runtime-authz/internal/app/authz"
	"github.com/astro-web3/runtime-authz/internal/config"
	authzdomain "github.com/astro-web3/runtime-authz/internal/domain/authz"
	"github.com/astro-web3/runtime-authz/internal/infra/cache"
	"github.com/astro-web3/runtime-authz/internal/infra/rbac"
	"github.com/astro-web3/runtime-authz/internal/infra/tenant"
	"github.com/astro-web3/runtime-authz/pkg/logger"
	"github.com/astro-web3/runtime-authz/pkg/metrics"
	"github.com/astro-web3/runtime-authz/pkg/otel"
	"github.com/astro-web3/runtime-authz/pkg/tracer"
)

type Server struct {
	httpServer *http.Server
	db         *sql.DB
	redis      *redis.Client
}

const (
	idleTimeoutMultiplier = 2
	serviceName           = "runtime-authz"
)

func NewServer(cfg *config.Config) (*Server, error) {
	logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.Format, cfg.Observability.LogSource)

	otelCfg := otel.Config{
		ServiceName:        serviceName,
		Environment:        os.Getenv("APP_ENV"),
		EndpointURL:        cfg.Observability.TracingEndpointURL,
		Enabled:            cfg.Observability.TraceEnabled,
		SampleRatio:        cfg.Observability.TraceSampleRatio,
		Insecure:           cfg.Observability.TraceInsecure,
		ResourceAttributes: make(map[string]string),
	}
	if err := tracer.InitTracer(serviceName, otelCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	ctx := context.Background()
	srv := &Server{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	permissions, err := srv.permissionChecker(ctx, cfg, m)
	if err != nil {
		return nil, err
	}

	resolver, err := srv.tenantResolver(ctx, cfg)
	if err != nil {
		srv.close()
		return nil, err
	}

	credentials := authzdomain.NewClassifier(
		authzdomain.NewStaticAPIKey(cfg.Auth.APIKey),
		cfg.Auth.ClientJWTSecret,
		cfg.Auth.CandidateJWTSecret,
	)
	appService := authzapp.NewService(
		credentials,
		resolver,
		authzdomain.NewEndpointClassifier(),
		authzdomain.NewEngine(permissions),
		m,
	)

	handler, err := NewHandler(appService, cfg)
	if err != nil {
		srv.close()
		return nil, err
	}
	router := NewRouter(handler, appService, cfg, registry)

	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * idleTimeoutMultiplier,
	}

	return srv, nil
}

func (s *Server) permissionChecker(
	ctx context.Context,
	cfg *config.Config,
	m *metrics.Metrics,
) (authzdomain.PermissionChecker, error) {
	if cfg.Database.DSN == "" {
		logger.WarnContext(ctx, "no permission store configured, protected endpoints deny everyone but the API key")
		return rbac.DenyAll{}, nil
	}

	db, err := rbac.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open permission store: %w", err)
	}
	s.db = db

	store := rbac.NewStore(db, m)
	if cfg.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			s.close()
			return nil, err
		}
		logger.InfoContext(ctx, "permission schema ensured")
	}

	return store, nil
}

func (s *Server) tenantResolver(ctx context.Context, cfg *config.Config) (*tenant.Resolver, error) {
	opts := tenant.Options{
		Header:     cfg.Tenant.Header,
		BaseDomain: cfg.Tenant.BaseDomain,
		CacheTTL:   cfg.Tenant.CacheTTL,
	}

	if cfg.Tenant.DirectoryURL != "" {
		opts.Directory = tenant.NewDirectoryClient(cfg.Tenant.DirectoryURL, cfg.Tenant.DirectoryToken)

		if cfg.Redis.URL != "" {
			client, err := cache.NewRedisClient(cfg.Redis.URL, cfg.Redis.PoolSize)
			if err != nil {
				return nil, fmt.Errorf("failed to create redis client: %w", err)
			}
			s.redis = client
			opts.Cache = cache.NewTenantCache(client)
		}
	}

	logger.InfoContext(ctx, "tenant resolution configured",
		slog.String("header", opts.Header),
		slog.String("base_domain", opts.BaseDomain),
		slog.Bool("directory", opts.Directory != nil),
		slog.Bool("cache", opts.Cache != nil),
	)

	return tenant.NewResolver(opts), nil
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.close())
}

func (s *Server) close() error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
		s.redis = nil
	}
	return errors.Join(errs...)
}
