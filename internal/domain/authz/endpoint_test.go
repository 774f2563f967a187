package authz_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/astro-web3/runtime-authz/internal/domain/authz"
)

func TestActionForMethod(t *testing.T) {
	cases := map[string]string{
		http.MethodGet:     "read",
		http.MethodPost:    "create",
		http.MethodPut:     "update",
		http.MethodPatch:   "update",
		http.MethodDelete:  "delete",
		http.MethodHead:    "access",
		http.MethodOptions: "access",
		"get":              "read",
		"":                 "access",
	}

	for method, want := range cases {
		assert.Equal(t, want, authz.ActionForMethod(method), "method %q", method)
	}
}

func TestEndpointClassifier_Public(t *testing.T) {
	c := authz.NewEndpointClassifier()

	for _, path := range []string{
		"/",
		"/health",
		"/healthz",
		"/docs",
		"/docs/oauth2-redirect",
		"/openapi.json",
		"/auth/login",
		"/v1/client/login",
		"/v1/candidate/register",
		"/tenants/health",
		"/workflow/health",
	} {
		got := c.Classify(path, http.MethodGet)
		assert.Equal(t, authz.EndpointPublic, got.Kind, "path %q", path)
	}
}

func TestEndpointClassifier_RootIsExactOnly(t *testing.T) {
	c := authz.NewEndpointClassifier()

	got := c.Classify("/v1/jobs", http.MethodGet)
	assert.Equal(t, authz.EndpointProtected, got.Kind)
}

func TestEndpointClassifier_Protected(t *testing.T) {
	c := authz.NewEndpointClassifier()

	cases := []struct {
		path     string
		method   string
		resource string
		action   string
	}{
		{"/v1/jobs", http.MethodGet, "jobs", "read"},
		{"/v1/jobs/123", http.MethodPut, "jobs", "update"},
		{"/v1/candidates", http.MethodPost, "candidates", "create"},
		{"/v1/candidates/search", http.MethodGet, "candidates", "read"},
		{"/v1/feedback", http.MethodDelete, "feedback", "delete"},
		{"/v1/interviews", http.MethodPatch, "interviews", "update"},
		{"/v1/offers", http.MethodGet, "offers", "read"},
		{"/v1/analytics/summary", http.MethodGet, "analytics", "read"},
		{"/v1/clients", http.MethodHead, "clients", "access"},
		{"/v1/security/rate-limit-status", http.MethodGet, "security", "read"},
		{"/v1/candidate/profile/7", http.MethodPut, "profiles", "update"},
	}

	for _, tc := range cases {
		got := c.Classify(tc.path, tc.method)
		assert.Equal(t, authz.EndpointProtected, got.Kind, "path %q", tc.path)
		assert.Equal(t, tc.resource, got.Resource, "path %q", tc.path)
		assert.Equal(t, tc.action, got.Action, "path %q", tc.path)
	}
}

func TestEndpointClassifier_ExactBeforePrefix(t *testing.T) {
	c := authz.NewEndpointClassifierWithRoutes([]authz.ResourceRoute{
		{Prefix: "/v1/jobs", Resource: "jobs"},
		{Prefix: "/v1/jobs/archive", Resource: "archive"},
	})

	assert.Equal(t, "archive", c.Classify("/v1/jobs/archive", http.MethodGet).Resource)
	assert.Equal(t, "jobs", c.Classify("/v1/jobs/archive/2", http.MethodGet).Resource)
}

func TestEndpointClassifier_FirstPrefixWins(t *testing.T) {
	c := authz.NewEndpointClassifierWithRoutes([]authz.ResourceRoute{
		{Prefix: "/v1/job", Resource: "first"},
		{Prefix: "/v1/jobs", Resource: "second"},
	})

	assert.Equal(t, "first", c.Classify("/v1/jobs/1", http.MethodGet).Resource)
	assert.Equal(t, "second", c.Classify("/v1/jobs", http.MethodGet).Resource)
}

func TestEndpointClassifier_Unclassified(t *testing.T) {
	c := authz.NewEndpointClassifier()

	got := c.Classify("/v1/reports/weekly", http.MethodGet)
	assert.Equal(t, authz.EndpointUnclassified, got.Kind)
	assert.False(t, got.SelfManaged)
	assert.Empty(t, got.Resource)

	for _, path := range []string{"/role/current", "/audit/events", "/workflow/run", "/tenants/T1"} {
		got := c.Classify(path, http.MethodPost)
		assert.Equal(t, authz.EndpointUnclassified, got.Kind, "path %q", path)
		assert.True(t, got.SelfManaged, "path %q", path)
	}
}

func TestEndpointClassifier_Deterministic(t *testing.T) {
	c := authz.NewEndpointClassifier()

	paths := []string{"/", "/v1/jobs", "/v1/offers/1", "/role/current", "/unknown"}
	methods := []string{http.MethodGet, http.MethodPost, "PROPFIND"}

	for _, p := range paths {
		for _, m := range methods {
			assert.Equal(t, c.Classify(p, m), c.Classify(p, m), "%s %s", m, p)
		}
	}
}
