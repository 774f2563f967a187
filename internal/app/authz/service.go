package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astro-web3/runtime-authz/internal/domain/authz"
	"github.com/astro-web3/runtime-authz/pkg/logger"
	"github.com/astro-web3/runtime-authz/pkg/metrics"
	"github.com/astro-web3/runtime-authz/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

// Result carries everything derived for one request.
type Result struct {
	Credential authz.Credential
	Tenant     *authz.TenantContext
	Endpoint   authz.Endpoint
	Decision   authz.Decision
}

// AuthInfo returns the credential for downstream handlers, or nil when the
// caller is unauthenticated.
func (r *Result) AuthInfo() *authz.Credential {
	if r == nil || !r.Credential.Authenticated() {
		return nil
	}
	cred := r.Credential
	return &cred
}

type Service interface {
	Authorize(ctx context.Context, req authz.RequestInfo) (*Result, error)
}

type service struct {
	credentials *authz.Classifier
	tenants     authz.TenantResolver
	endpoints   *authz.EndpointClassifier
	engine      authz.Engine
	metrics     *metrics.Metrics
}

func NewService(
	credentials *authz.Classifier,
	tenants authz.TenantResolver,
	endpoints *authz.EndpointClassifier,
	engine authz.Engine,
	m *metrics.Metrics,
) Service {
	return &service{
		credentials: credentials,
		tenants:     tenants,
		endpoints:   endpoints,
		engine:      engine,
		metrics:     m,
	}
}

func (s *service) Authorize(ctx context.Context, req authz.RequestInfo) (*Result, error) {
	ctx, span := tracer.Start(ctx, "app.authz.Authorize")
	defer span.End()

	res := &Result{}

	res.Credential = s.credentials.Classify(req.Authorization)
	s.metrics.ObserveCredential(string(res.Credential.Kind))

	res.Tenant = s.resolveTenant(ctx, req)

	res.Endpoint = s.endpoints.Classify(req.Path, req.Method)

	span.SetAttributes(
		attribute.String("authz.credential", string(res.Credential.Kind)),
		attribute.String("authz.endpoint", res.Endpoint.Kind.String()),
		attribute.String("authz.resource", res.Endpoint.Resource),
		attribute.String("authz.action", res.Endpoint.Action),
	)
	if res.Tenant != nil {
		span.SetAttributes(attribute.String("authz.tenant_id", res.Tenant.TenantID))
	}

	decision, err := s.engine.Decide(ctx, res.Credential, res.Tenant, res.Endpoint)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("authorize %s %s: %w", req.Method, req.Path, err)
	}
	// A decision reached after the caller went away is never applied.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	res.Decision = decision

	s.metrics.ObserveDecision(decision.Outcome.String(), decision.Status)
	span.SetAttributes(attribute.String("authz.decision", decision.Outcome.String()))
	if decision.Outcome == authz.OutcomeDeny {
		span.SetAttributes(attribute.String("authz.reason", decision.Reason))
	}

	return res, nil
}

func (s *service) resolveTenant(ctx context.Context, req authz.RequestInfo) (tenant *authz.TenantContext) {
	if s.tenants == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.metrics.ObserveTenantFailure()
			logger.ErrorContext(ctx, "tenant resolver panicked, continuing without tenant",
				slog.Any("panic", r),
			)
			tenant = nil
		}
	}()

	tenant, err := s.tenants.ResolveTenant(ctx, req)
	if err != nil {
		s.metrics.ObserveTenantFailure()
		logger.WarnContext(ctx, "tenant resolution failed, continuing without tenant",
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return tenant
}
