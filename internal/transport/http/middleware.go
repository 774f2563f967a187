package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	authzapp "github.com/astro-web3/runtime-authz/internal/app/authz"
	"github.com/astro-web3/runtime-authz/internal/domain/authz"
	"github.com/astro-web3/runtime-authz/pkg/logger"
	"github.com/astro-web3/runtime-authz/pkg/tracer"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128

	internalErrorDetail = "Internal server error"
	invalidPathDetail   = "Invalid request path"
)

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", duration),
		}
		if cred := CurrentAuthInfo(c); cred != nil {
			attrs = append(attrs, slog.String("auth_type", string(cred.Kind)))
		}

		if status >= 500 {
			logger.ErrorContext(c.Request.Context(), "request failed", attrs...)
		} else {
			logger.InfoContext(c.Request.Context(), "request completed", attrs...)
		}
	}
}

// requestIDMiddleware keeps a sane inbound X-Request-ID or mints one, and
// makes it visible to the client and to every log line of the request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		c.Set(RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))

		c.Next()
	}
}

// AuthorizationMiddleware runs the authorization pipeline in front of every
// handler it wraps. Denied requests never reach the handler.
func AuthorizationMiddleware(svc authzapp.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "transport.http.Authorize")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		// The path that is classified must be the path that is forwarded.
		if !isCanonicalPath(c.Request.URL.Path) {
			logger.WarnContext(ctx, "rejected non-canonical path",
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": invalidPathDetail})
			return
		}

		res, err := svc.Authorize(ctx, requestInfo(c.Request))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			abortOnPipelineError(ctx, c, err)
			return
		}

		publish(c, res)
		span.SetAttributes(attribute.String("authz.decision", res.Decision.Outcome.String()))

		if res.Decision.Outcome == authz.OutcomeDeny {
			logDenied(ctx, c.Request, res.Decision)
			c.AbortWithStatusJSON(res.Decision.Status, gin.H{"detail": res.Decision.Reason})
			return
		}

		c.Next()
	}
}

// isCanonicalPath reports whether p is unchanged by cleaning dot segments
// and duplicate slashes. A trailing slash is kept.
func isCanonicalPath(p string) bool {
	if p == "" {
		return false
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned == p
}

func requestInfo(r *http.Request) authz.RequestInfo {
	return authz.RequestInfo{
		Method:        r.Method,
		Path:          r.URL.Path,
		Host:          r.Host,
		Authorization: r.Header.Get("Authorization"),
		Header:        r.Header,
	}
}

// publish exposes the pipeline result through both the gin context and the
// request context so plain net/http code downstream can read it too.
func publish(c *gin.Context, res *authzapp.Result) {
	cred := res.AuthInfo()

	c.Set(AuthInfoKey, cred)
	c.Set(TenantInfoKey, res.Tenant)
	c.Set(DecisionKey, res.Decision)

	ctx := c.Request.Context()
	ctx = authz.WithCredential(ctx, cred)
	ctx = authz.WithTenant(ctx, res.Tenant)
	c.Request = c.Request.WithContext(ctx)
}

func abortOnPipelineError(ctx context.Context, c *gin.Context, err error) {
	// The client is gone; nothing can be delivered.
	if c.Request.Context().Err() != nil || errors.Is(err, context.Canceled) {
		logger.InfoContext(ctx, "request cancelled during authorization",
			slog.String("path", c.Request.URL.Path),
		)
		c.Abort()
		return
	}

	logger.ErrorContext(ctx, "authorization pipeline failed",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": internalErrorDetail})
}

func logDenied(ctx context.Context, r *http.Request, d authz.Decision) {
	logger.WarnContext(ctx, "authorization denied",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", d.Status),
		slog.String("reason", d.Reason),
	)
}
