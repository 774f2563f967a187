package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"

	authzapp "github.com/astro-web3/runtime-authz/internal/app/authz"
	"github.com/astro-web3/runtime-authz/internal/config"
	"github.com/astro-web3/runtime-authz/internal/domain/authz"
	"github.com/astro-web3/runtime-authz/pkg/logger"
	"github.com/astro-web3/runtime-authz/pkg/tracer"
)

const (
	forwardedMethodHeader = "X-Forwarded-Method"
	forwardedURIHeader    = "X-Forwarded-Uri"
	forwardedHostHeader   = "X-Forwarded-Host"
)

type Handler struct {
	appService authzapp.Service
	headers    identityHeaders
	proxy      *httputil.ReverseProxy
}

func NewHandler(appService authzapp.Service, cfg *config.Config) (*Handler, error) {
	h := &Handler{
		appService: appService,
		headers:    newIdentityHeaders(cfg),
	}

	if cfg.Upstream.URL != "" {
		target, err := url.Parse(cfg.Upstream.URL)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid upstream url %q", cfg.Upstream.URL)
		}
		h.proxy = newReverseProxy(target)
	}

	return h, nil
}

// Check is the forward-auth endpoint. The proxy in front describes the
// original request through X-Forwarded-* headers.
func (h *Handler) Check(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.Check")
	defer span.End()

	req, ok := forwardedRequestInfo(c.Request)
	if !ok {
		logger.WarnContext(ctx, "forward-auth rejected non-canonical path",
			slog.String("uri", c.GetHeader(forwardedURIHeader)),
		)
		c.JSON(http.StatusBadRequest, gin.H{"detail": invalidPathDetail})
		return
	}
	span.SetAttributes(
		attribute.String("authz.forwarded_method", req.Method),
		attribute.String("authz.forwarded_path", req.Path),
	)

	res, err := h.appService.Authorize(ctx, req)
	if err != nil {
		span.RecordError(err)
		abortOnPipelineError(ctx, c, err)
		return
	}

	span.SetAttributes(attribute.String("authz.decision", res.Decision.Outcome.String()))

	if res.Decision.Outcome == authz.OutcomeDeny {
		logger.WarnContext(ctx, "forward-auth denied",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Int("status", res.Decision.Status),
			slog.String("reason", res.Decision.Reason),
		)
		c.JSON(res.Decision.Status, gin.H{"detail": res.Decision.Reason})
		return
	}

	for k, v := range h.headers.values(res.AuthInfo(), res.Tenant, res.Decision) {
		c.Header(k, v)
	}

	c.Status(http.StatusOK)
}

// RoleCurrent is a self-managed surface: the middleware defers to it, so
// it enforces authentication itself.
func (h *Handler) RoleCurrent(c *gin.Context) {
	cred := CurrentAuthInfo(c)
	if cred == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": authz.ReasonAuthenticationRequired})
		return
	}

	resp := gin.H{
		"role":      cred.Role,
		"user_id":   cred.Principal(),
		"auth_type": cred.Kind,
		"tenant_id": cred.TenantID,
	}
	if tenant := CurrentTenantInfo(c); tenant != nil {
		resp["tenant_id"] = tenant.TenantID
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"auth":   CurrentAuthInfo(c),
		"tenant": CurrentTenantInfo(c),
	})
}

// Proxy forwards authorized requests to the upstream API. Identity headers
// sent by the client are replaced by the ones derived here.
func (h *Handler) Proxy(c *gin.Context) {
	if h.proxy == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	for _, name := range h.headers.names() {
		c.Request.Header.Del(name)
	}
	decision, _ := currentDecision(c)
	for k, v := range h.headers.values(CurrentAuthInfo(c), CurrentTenantInfo(c), decision) {
		c.Request.Header.Set(k, v)
	}

	h.proxy.ServeHTTP(c.Writer, c.Request)
}

func newReverseProxy(target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "upstream request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"detail":"Bad Gateway"}`))
		},
	}
}

// forwardedRequestInfo describes the original request. ok is false when
// its path is unparsable or not canonical, since the fronting proxy would
// forward it unchanged.
func forwardedRequestInfo(r *http.Request) (authz.RequestInfo, bool) {
	info := requestInfo(r)

	if m := strings.TrimSpace(r.Header.Get(forwardedMethodHeader)); m != "" {
		info.Method = strings.ToUpper(m)
	}
	if uri := strings.TrimSpace(r.Header.Get(forwardedURIHeader)); uri != "" {
		u, err := url.ParseRequestURI(uri)
		if err != nil {
			return info, false
		}
		info.Path = u.Path
	}
	if host := strings.TrimSpace(r.Header.Get(forwardedHostHeader)); host != "" {
		info.Host = host
	}

	return info, isCanonicalPath(info.Path)
}

type identityHeaders struct {
	userID   string
	tenantID string
	role     string
	authType string
	decision string
}

func newIdentityHeaders(cfg *config.Config) identityHeaders {
	keys := cfg.Auth.HeaderKeys
	return identityHeaders{
		userID:   lo.CoalesceOrEmpty(keys.UserID, "X-User-ID"),
		tenantID: lo.CoalesceOrEmpty(keys.TenantID, "X-Tenant-ID"),
		role:     lo.CoalesceOrEmpty(keys.Role, "X-User-Role"),
		authType: lo.CoalesceOrEmpty(keys.AuthType, "X-Auth-Type"),
		decision: lo.CoalesceOrEmpty(keys.Decision, "X-Authz-Decision"),
	}
}

func (h identityHeaders) names() []string {
	return []string{h.userID, h.tenantID, h.role, h.authType, h.decision}
}

// values omits empty entries so no header is sent with an empty value.
func (h identityHeaders) values(
	cred *authz.Credential,
	tenant *authz.TenantContext,
	decision authz.Decision,
) map[string]string {
	out := map[string]string{
		h.decision: decision.Outcome.String(),
		h.authType: string(authz.CredentialNone),
	}

	if cred != nil {
		out[h.authType] = string(cred.Kind)
		out[h.userID] = lo.CoalesceOrEmpty(decision.UserID, cred.Principal())
		out[h.role] = cred.Role
		out[h.tenantID] = cred.TenantID
	}
	if tenant != nil {
		out[h.tenantID] = tenant.TenantID
	}

	return lo.OmitByValues(out, []string{""})
}
