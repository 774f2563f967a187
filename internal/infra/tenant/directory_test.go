package tenant_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astro-web3/runtime-authz/internal/infra/tenant"
)

func newDirectoryServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestDirectoryClient_Lookup(t *testing.T) {
	var gotAuth, gotPath string
	url := newDirectoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tenant_id":"T1","name":"Acme","domain":"acme.sar.example.com","status":"active"}`))
	})

	dir := tenant.NewDirectoryClient(url+"/", "dir-token")
	got, err := dir.Lookup(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "/tenants/acme", gotPath)
	assert.Equal(t, "Bearer dir-token", gotAuth)
	assert.Equal(t, "T1", got.TenantID)
	assert.Equal(t, "Acme", got.Name)
	assert.Equal(t, "active", got.Status)
}

func TestDirectoryClient_NotFound(t *testing.T) {
	url := newDirectoryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := tenant.NewDirectoryClient(url, "").Lookup(context.Background(), "ghost")
	require.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestDirectoryClient_ServerError(t *testing.T) {
	url := newDirectoryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := tenant.NewDirectoryClient(url, "").Lookup(context.Background(), "acme")
	require.Error(t, err)
	assert.NotErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestDirectoryClient_EmptyBody(t *testing.T) {
	url := newDirectoryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := tenant.NewDirectoryClient(url, "").Lookup(context.Background(), "acme")
	require.Error(t, err)
}
