package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/astro-web3/runtime-authz/internal/domain/authz"
	httpclient "github.com/astro-web3/runtime-authz/pkg/http"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantInactive = errors.New("tenant is not active")
)

// Directory looks tenants up by identifier (id or slug).
type Directory interface {
	Lookup(ctx context.Context, tenantKey string) (*authz.TenantContext, error)
}

type directoryTenant struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Status   string `json:"status"`
}

type directoryClient struct {
	baseURL string
	token   string
}

func NewDirectoryClient(baseURL, token string) Directory {
	return &directoryClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
	}
}

func (c *directoryClient) Lookup(ctx context.Context, tenantKey string) (*authz.TenantContext, error) {
	endpoint := c.baseURL + "/tenants/" + url.PathEscape(tenantKey)

	var body directoryTenant
	resp, err := httpclient.Get(ctx, endpoint,
		httpclient.WithAuthToken(c.token),
		httpclient.WithResult(&body),
	)
	if err != nil {
		return nil, fmt.Errorf("tenant directory request failed: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantKey)
	case resp.StatusCode() >= http.StatusBadRequest:
		return nil, fmt.Errorf("tenant directory returned %d", resp.StatusCode())
	}

	if body.TenantID == "" {
		return nil, fmt.Errorf("tenant directory returned no tenant_id for %s", tenantKey)
	}

	return &authz.TenantContext{
		TenantID: body.TenantID,
		Name:     body.Name,
		Domain:   body.Domain,
		Status:   body.Status,
	}, nil
}
