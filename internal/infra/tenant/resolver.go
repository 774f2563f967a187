package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/astro-web3/runtime-authz/internal/domain/authz"
	"github.com/astro-web3/runtime-authz/internal/infra/cache"
	"github.com/astro-web3/runtime-authz/pkg/logger"
	"github.com/astro-web3/runtime-authz/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

const statusActive = "active"

var reservedSubdomains = map[string]bool{
	"www": true,
	"api": true,
	"app": true,
}

type Options struct {
	// Header carrying the tenant identifier, e.g. X-Tenant-ID.
	Header string
	// BaseDomain enables subdomain resolution: acme.<BaseDomain> -> acme.
	BaseDomain string
	// Directory is optional; without it the identifier is the tenant id.
	Directory Directory
	// Cache is optional and only consulted when Directory is set.
	Cache    cache.TenantCache
	CacheTTL time.Duration
}

// Resolver derives the tenant of a request from a header or the host name.
type Resolver struct {
	header     string
	baseDomain string
	directory  Directory
	cache      cache.TenantCache
	cacheTTL   time.Duration
	group      singleflight.Group
}

func NewResolver(opts Options) *Resolver {
	return &Resolver{
		header:     opts.Header,
		baseDomain: strings.ToLower(strings.Trim(opts.BaseDomain, ".")),
		directory:  opts.Directory,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
	}
}

// ResolveTenant returns nil, nil when the request names no tenant.
func (r *Resolver) ResolveTenant(ctx context.Context, req authz.RequestInfo) (*authz.TenantContext, error) {
	ctx, span := tracer.Start(ctx, "infra.tenant.Resolve")
	defer span.End()

	key := r.tenantKey(req)
	if key == "" {
		return nil, nil
	}
	span.SetAttributes(attribute.String("tenant.key", key))

	if r.directory == nil {
		return &authz.TenantContext{TenantID: key}, nil
	}

	tenant, err := r.lookup(ctx, key)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if tenant.Status != "" && !strings.EqualFold(tenant.Status, statusActive) {
		return nil, fmt.Errorf("%w: %s is %s", ErrTenantInactive, tenant.TenantID, tenant.Status)
	}

	return tenant, nil
}

func (r *Resolver) tenantKey(req authz.RequestInfo) string {
	if r.header != "" && req.Header != nil {
		if v := strings.TrimSpace(req.Header.Get(r.header)); v != "" {
			return v
		}
	}
	return r.subdomain(req.Host)
}

func (r *Resolver) subdomain(host string) string {
	if r.baseDomain == "" || host == "" {
		return ""
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	label, ok := strings.CutSuffix(host, "."+r.baseDomain)
	if !ok || label == "" || strings.Contains(label, ".") || reservedSubdomains[label] {
		return ""
	}
	return label
}

func (r *Resolver) lookup(ctx context.Context, key string) (*authz.TenantContext, error) {
	if r.cache != nil {
		cached, err := r.cache.Get(ctx, key)
		if err == nil {
			return &authz.TenantContext{
				TenantID: cached.TenantID,
				Name:     cached.Name,
				Domain:   cached.Domain,
				Status:   cached.Status,
			}, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WarnContext(ctx, "failed to get tenant from cache, will query directory",
				slog.String("error", err.Error()),
			)
		}
	}

	// Concurrent requests for the same tenant share one directory call.
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.directory.Lookup(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return nil, err
	}
	tenant, ok := v.(*authz.TenantContext)
	if !ok || tenant == nil {
		return nil, fmt.Errorf("tenant directory returned unexpected type %T", v)
	}

	if r.cache != nil {
		entry := &cache.CachedTenant{
			TenantID: tenant.TenantID,
			Name:     tenant.Name,
			Domain:   tenant.Domain,
			Status:   tenant.Status,
		}
		if setErr := r.cache.Set(ctx, key, entry, r.cacheTTL); setErr != nil {
			logger.WarnContext(ctx, "failed to set tenant cache", slog.String("error", setErr.Error()))
		}
	}

	copied := *tenant
	return &copied, nil
}
