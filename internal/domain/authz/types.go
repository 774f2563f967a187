package authz

import (
	"context"
	"net/http"
)

type CredentialKind string

const (
	CredentialNone      CredentialKind = "unauthenticated"
	CredentialAPIKey    CredentialKind = "api_key"
	CredentialClient    CredentialKind = "client_token"
	CredentialCandidate CredentialKind = "candidate_token"
)

const (
	SystemUserID  = "system"
	RoleAdmin     = "admin"
	RoleClient    = "client"
	RoleCandidate = "candidate"
)

// Credential is the classified caller identity for a single request.
// Kind selects which of the remaining fields are meaningful.
type Credential struct {
	Kind        CredentialKind `json:"type"`
	Token       string         `json:"-"`
	UserID      string         `json:"user_id,omitempty"`
	ClientID    string         `json:"client_id,omitempty"`
	CandidateID string         `json:"candidate_id,omitempty"`
	TenantID    string         `json:"tenant_id,omitempty"`
	Role        string         `json:"role,omitempty"`
}

func (c Credential) Authenticated() bool {
	return c.Kind != "" && c.Kind != CredentialNone
}

// Principal returns the identifier permissions are evaluated for:
// user_id, then client_id, then candidate_id.
func (c Credential) Principal() string {
	switch {
	case c.UserID != "":
		return c.UserID
	case c.ClientID != "":
		return c.ClientID
	default:
		return c.CandidateID
	}
}

type TenantContext struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Status   string `json:"status,omitempty"`
}

type EndpointKind int

const (
	EndpointUnclassified EndpointKind = iota
	EndpointPublic
	EndpointProtected
)

func (k EndpointKind) String() string {
	switch k {
	case EndpointPublic:
		return "public"
	case EndpointProtected:
		return "protected"
	default:
		return "unclassified"
	}
}

type Endpoint struct {
	Kind     EndpointKind
	Resource string
	Action   string
	// SelfManaged marks unclassified administrative surfaces that run their
	// own authorization checks.
	SelfManaged bool
}

type Outcome int

const (
	OutcomeDeny Outcome = iota
	OutcomeAllow
	OutcomeDefer
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeDefer:
		return "defer"
	default:
		return "deny"
	}
}

// Decision represents the authorization decision for one request.
type Decision struct {
	Outcome Outcome
	Reason  string
	Status  int
	UserID  string
}

func Allow(userID string) Decision {
	return Decision{Outcome: OutcomeAllow, UserID: userID}
}

func Defer() Decision {
	return Decision{Outcome: OutcomeDefer}
}

func Deny(reason string, status int) Decision {
	return Decision{Outcome: OutcomeDeny, Reason: reason, Status: status}
}

const (
	ReasonAuthenticationRequired = "Authentication required"
	ReasonInvalidAuthentication  = "Invalid authentication"
	ReasonCrossTenant            = "Access denied: Cross-tenant operation not allowed"
)

// RequestInfo is the part of an inbound request the pipeline looks at.
type RequestInfo struct {
	Method        string
	Path          string
	Host          string
	Authorization string
	Header        http.Header
}

type APIKeyValidator interface {
	ValidateAPIKey(token string) bool
}

type TenantResolver interface {
	ResolveTenant(ctx context.Context, req RequestInfo) (*TenantContext, error)
}

type PermissionChecker interface {
	HasPermission(ctx context.Context, userID, resource, action, tenantID, userTenantID string) (bool, error)
}
