package http

import (
	"github.com/gin-gonic/gin"

	"github.com/astro-web3/runtime-authz/internal/domain/authz"
)

// Keys under which the authorization middleware publishes its results on
// the gin context.
const (
	AuthInfoKey   = "auth_info"
	TenantInfoKey = "tenant_info"
	DecisionKey   = "authz_decision"
	RequestIDKey  = "request_id"
)

// CurrentAuthInfo returns the caller's credential, or nil when the request
// is unauthenticated or did not pass through the middleware.
func CurrentAuthInfo(c *gin.Context) *authz.Credential {
	v, ok := c.Get(AuthInfoKey)
	if !ok {
		return nil
	}
	cred, _ := v.(*authz.Credential)
	return cred
}

// CurrentTenantInfo returns the resolved tenant, or nil.
func CurrentTenantInfo(c *gin.Context) *authz.TenantContext {
	v, ok := c.Get(TenantInfoKey)
	if !ok {
		return nil
	}
	tenant, _ := v.(*authz.TenantContext)
	return tenant
}

func currentDecision(c *gin.Context) (authz.Decision, bool) {
	v, ok := c.Get(DecisionKey)
	if !ok {
		return authz.Decision{}, false
	}
	d, ok := v.(authz.Decision)
	return d, ok
}
