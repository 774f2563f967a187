package authz

import (
	"net/http"
	"strings"
)

type pathMatcher struct {
	pattern string
	exact   bool
}

func exact(pattern string) pathMatcher  { return pathMatcher{pattern: pattern, exact: true} }
func prefix(pattern string) pathMatcher { return pathMatcher{pattern: pattern} }

func (m pathMatcher) match(path string) bool {
	if m.exact {
		return path == m.pattern
	}
	return strings.HasPrefix(path, m.pattern)
}

type ResourceRoute struct {
	Prefix   string
	Resource string
}

// Root is matched exactly; as a prefix it would make every path public.
var defaultPublicPaths = []pathMatcher{
	exact("/"),
	prefix("/health"),
	prefix("/healthz"),
	prefix("/docs"),
	prefix("/redoc"),
	prefix("/openapi.json"),
	prefix("/auth/login"),
	prefix("/auth/register"),
	prefix("/auth/refresh"),
	prefix("/v1/auth/login"),
	prefix("/v1/auth/register"),
	prefix("/v1/client/login"),
	prefix("/v1/client/register"),
	prefix("/v1/candidate/login"),
	prefix("/v1/candidate/register"),
	prefix("/auth/health"),
	prefix("/tenants/health"),
	prefix("/role/health"),
	prefix("/audit/health"),
	prefix("/workflow/health"),
}

var defaultSelfManagedPrefixes = []string{
	"/role",
	"/audit",
	"/workflow",
	"/tenants",
}

// Order matters for the prefix pass: the first matching entry wins.
var defaultResourceRoutes = []ResourceRoute{
	{Prefix: "/v1/jobs", Resource: "jobs"},
	{Prefix: "/v1/candidates", Resource: "candidates"},
	{Prefix: "/v1/feedback", Resource: "feedback"},
	{Prefix: "/v1/interviews", Resource: "interviews"},
	{Prefix: "/v1/offers", Resource: "offers"},
	{Prefix: "/v1/analytics", Resource: "analytics"},
	{Prefix: "/v1/clients", Resource: "clients"},
	{Prefix: "/v1/security", Resource: "security"},
	{Prefix: "/v1/applications", Resource: "applications"},
	{Prefix: "/v1/candidate/profile", Resource: "profiles"},
	{Prefix: "/v1/documents", Resource: "documents"},
}

// EndpointClassifier maps (path, method) to an Endpoint. It is immutable
// after construction and safe for concurrent use.
type EndpointClassifier struct {
	public      []pathMatcher
	selfManaged []string
	routes      []ResourceRoute
}

func NewEndpointClassifier() *EndpointClassifier {
	return NewEndpointClassifierWithRoutes(defaultResourceRoutes)
}

func NewEndpointClassifierWithRoutes(routes []ResourceRoute) *EndpointClassifier {
	return &EndpointClassifier{
		public:      defaultPublicPaths,
		selfManaged: defaultSelfManagedPrefixes,
		routes:      append([]ResourceRoute(nil), routes...),
	}
}

func (c *EndpointClassifier) Classify(path, method string) Endpoint {
	for _, m := range c.public {
		if m.match(path) {
			return Endpoint{Kind: EndpointPublic}
		}
	}

	if resource, ok := c.resourceFor(path); ok {
		return Endpoint{
			Kind:     EndpointProtected,
			Resource: resource,
			Action:   ActionForMethod(method),
		}
	}

	return Endpoint{
		Kind:        EndpointUnclassified,
		SelfManaged: c.isSelfManaged(path),
	}
}

func (c *EndpointClassifier) resourceFor(path string) (string, bool) {
	for _, r := range c.routes {
		if path == r.Prefix {
			return r.Resource, true
		}
	}
	for _, r := range c.routes {
		if strings.HasPrefix(path, r.Prefix) {
			return r.Resource, true
		}
	}
	return "", false
}

func (c *EndpointClassifier) isSelfManaged(path string) bool {
	for _, p := range c.selfManaged {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func ActionForMethod(method string) string {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "access"
	}
}
