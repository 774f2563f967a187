package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	authzapp "github.com/astro-web3/runtime-authz/internal/app/authz"
	"github.com/astro-web3/runtime-authz/internal/config"
	"github.com/astro-web3/runtime-authz/internal/domain/authz"
	httptransport "github.com/astro-web3/runtime-authz/internal/transport/http"
)

const (
	testAPIKey          = "test-api-key"
	testClientSecret    = "client-secret"
	testCandidateSecret = "candidate-secret"
)

type fakeTenantResolver struct {
	tenant *authz.TenantContext
	err    error
}

func (f *fakeTenantResolver) ResolveTenant(context.Context, authz.RequestInfo) (*authz.TenantContext, error) {
	return f.tenant, f.err
}

type permissionCall struct {
	UserID, Resource, Action, TenantID, UserTenantID string
}

type fakePermissions struct {
	mu      sync.Mutex
	allowed bool
	err     error
	hook    func(ctx context.Context) error
	calls   []permissionCall
}

func (f *fakePermissions) HasPermission(
	ctx context.Context,
	userID, resource, action, tenantID, userTenantID string,
) (bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, permissionCall{userID, resource, action, tenantID, userTenantID})
	f.mu.Unlock()

	if f.hook != nil {
		if err := f.hook(ctx); err != nil {
			return false, err
		}
	}
	return f.allowed, f.err
}

func (f *fakePermissions) Calls() []permissionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]permissionCall(nil), f.calls...)
}

func createTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Auth.APIKey = testAPIKey
	cfg.Auth.ClientJWTSecret = testClientSecret
	cfg.Auth.CandidateJWTSecret = testCandidateSecret
	cfg.Auth.HeaderKeys.UserID = "X-User-ID"
	cfg.Auth.HeaderKeys.TenantID = "X-Tenant-ID"
	cfg.Auth.HeaderKeys.Role = "X-User-Role"
	cfg.Auth.HeaderKeys.AuthType = "X-Auth-Type"
	cfg.Auth.HeaderKeys.Decision = "X-Authz-Decision"
	cfg.Tenant.Header = "X-Tenant-ID"
	return cfg
}

func newPipeline(tenants authz.TenantResolver, permissions authz.PermissionChecker) authzapp.Service {
	return authzapp.NewService(
		authz.NewClassifier(authz.NewStaticAPIKey(testAPIKey), testClientSecret, testCandidateSecret),
		tenants,
		authz.NewEndpointClassifier(),
		authz.NewEngine(permissions),
		nil,
	)
}

func newTestRouter(t *testing.T, svc authzapp.Service, cfg *config.Config) *gin.Engine {
	t.Helper()

	handler, err := httptransport.NewHandler(svc, cfg)
	require.NoError(t, err)
	return httptransport.NewRouter(handler, svc, cfg, nil)
}

// newUpstream records the last request it received.
func newUpstream(t *testing.T) (string, func() *http.Request) {
	t.Helper()

	var (
		mu   sync.Mutex
		last *http.Request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = r.Clone(context.Background())
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	return srv.URL, func() *http.Request {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func signToken(t *testing.T, secret string, claims jwtlib.MapClaims) string {
	t.Helper()

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func clientToken(t *testing.T, tenantID string) string {
	t.Helper()

	return signToken(t, testClientSecret, jwtlib.MapClaims{
		"client_id": "client-1",
		"user_id":   "user-1",
		"tenant_id": tenantID,
	})
}

func candidateToken(t *testing.T) string {
	t.Helper()

	return signToken(t, testCandidateSecret, jwtlib.MapClaims{
		"sub":       "cand-1",
		"tenant_id": "T1",
	})
}

// doRequest gives the request a cancellable context, as a server would;
// httputil.ReverseProxy relies on it instead of CloseNotify.
func doRequest(router http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(method, path, nil).WithContext(ctx)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
