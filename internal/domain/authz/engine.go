package authz

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/lo"
)

var tenantScopedResources = []string{
	"jobs",
	"candidates",
	"feedback",
	"interviews",
	"offers",
	"applications",
	"profiles",
	"documents",
}

func IsTenantScoped(resource string) bool {
	return lo.Contains(tenantScopedResources, resource)
}

type Engine interface {
	// Decide evaluates the request in a fixed order: public bypass,
	// unclassified handling, authentication, tenant isolation, then the
	// permission store. The only error is a failed permission lookup.
	Decide(ctx context.Context, cred Credential, tenant *TenantContext, endpoint Endpoint) (Decision, error)
}

type engine struct {
	permissions PermissionChecker
}

func NewEngine(permissions PermissionChecker) Engine {
	return &engine{permissions: permissions}
}

func (e *engine) Decide(
	ctx context.Context,
	cred Credential,
	tenant *TenantContext,
	endpoint Endpoint,
) (Decision, error) {
	switch endpoint.Kind {
	case EndpointPublic:
		return Allow(cred.Principal()), nil
	case EndpointUnclassified:
		return decideUnclassified(cred, endpoint), nil
	}

	if !cred.Authenticated() {
		return Deny(ReasonAuthenticationRequired, http.StatusUnauthorized), nil
	}

	userID := cred.Principal()
	if userID == "" {
		return Deny(ReasonInvalidAuthentication, http.StatusUnauthorized), nil
	}

	if crossTenant(cred, tenant, endpoint.Resource) {
		return Deny(ReasonCrossTenant, http.StatusForbidden), nil
	}

	if cred.Kind == CredentialAPIKey {
		return Allow(userID), nil
	}

	var tenantID string
	if tenant != nil {
		tenantID = tenant.TenantID
	}

	allowed, err := e.permissions.HasPermission(ctx, userID, endpoint.Resource, endpoint.Action, tenantID, cred.TenantID)
	if err != nil {
		return Decision{}, fmt.Errorf("check permission %s:%s for %s: %w", endpoint.Resource, endpoint.Action, userID, err)
	}
	if !allowed {
		return Deny(
			fmt.Sprintf("Insufficient permissions to %s %s", endpoint.Action, endpoint.Resource),
			http.StatusForbidden,
		), nil
	}

	return Allow(userID), nil
}

func decideUnclassified(cred Credential, endpoint Endpoint) Decision {
	if endpoint.SelfManaged {
		return Defer()
	}
	if !cred.Authenticated() {
		return Deny(ReasonAuthenticationRequired, http.StatusUnauthorized)
	}
	return Defer()
}

func crossTenant(cred Credential, tenant *TenantContext, resource string) bool {
	if tenant == nil || tenant.TenantID == "" || cred.TenantID == "" {
		return false
	}
	return IsTenantScoped(resource) && cred.TenantID != tenant.TenantID
}
