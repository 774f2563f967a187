package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	authzapp "github.com/astro-web3/runtime-authz/internal/app/authz"
	"github.com/astro-web3/runtime-authz/internal/config"
	"github.com/astro-web3/runtime-authz/pkg/metrics"
)

const corsMaxAge = 12 * time.Hour

// NewRouter mounts the operational endpoints outside the authorization
// middleware and everything else behind it. gatherer may be nil.
func NewRouter(
	handler *Handler,
	appService authzapp.Service,
	cfg *config.Config,
	gatherer prometheus.Gatherer,
) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	if cfg.Observability.TraceEnabled {
		router.Use(otelgin.Middleware(serviceName))
	}
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware())

	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
		corsConfig.AllowHeaders = []string{
			"Origin", "Content-Type", "Authorization", cfg.Tenant.Header, requestIDHeader,
		}
		corsConfig.ExposeHeaders = []string{requestIDHeader}
		corsConfig.AllowCredentials = true
		corsConfig.MaxAge = corsMaxAge
		router.Use(cors.New(corsConfig))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if cfg.Observability.MetricsEnabled && gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))
	}

	router.Any("/authz/check", handler.Check)

	authorized := router.Group("", AuthorizationMiddleware(appService))
	{
		authorized.GET("/role/current", handler.RoleCurrent)
		authorized.GET("/auth/me", handler.Me)
	}

	router.NoRoute(AuthorizationMiddleware(appService), handler.Proxy)

	return router
}
