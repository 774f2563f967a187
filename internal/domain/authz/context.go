package authz

import "context"

type credentialKey struct{}

type tenantKey struct{}

// WithCredential stores the caller's credential. Unauthenticated callers
// are stored as nil.
func WithCredential(ctx context.Context, cred *Credential) context.Context {
	return context.WithValue(ctx, credentialKey{}, cred)
}

// CredentialFromContext returns nil when no authenticated caller is set.
func CredentialFromContext(ctx context.Context) *Credential {
	if v, ok := ctx.Value(credentialKey{}).(*Credential); ok {
		return v
	}
	return nil
}

func WithTenant(ctx context.Context, tenant *TenantContext) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

func TenantFromContext(ctx context.Context) *TenantContext {
	if v, ok := ctx.Value(tenantKey{}).(*TenantContext); ok {
		return v
	}
	return nil
}
