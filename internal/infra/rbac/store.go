// Package rbac answers permission questions from the role tables of the
// platform database.
package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/astro-web3/runtime-authz/internal/domain/authz"
	"github.com/astro-web3/runtime-authz/pkg/logger"
	"github.com/astro-web3/runtime-authz/pkg/metrics"
	"github.com/astro-web3/runtime-authz/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Wildcard grants every resource or every action.
const Wildcard = "*"

const pingTimeout = 5 * time.Second

// A role assignment applies globally (tenant_id NULL) or to one tenant.
const hasPermissionQuery = `
SELECT EXISTS (
	SELECT 1
	FROM sar_user_roles ur
	JOIN sar_roles r ON r.id = ur.role_id
	JOIN sar_role_permissions rp ON rp.role_id = r.id
	WHERE ur.user_id = $1
	  AND r.is_active
	  AND (ur.tenant_id IS NULL OR ur.tenant_id = $2)
	  AND (rp.resource = $3 OR rp.resource = '*')
	  AND (rp.action = $4 OR rp.action = '*')
)`

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sar_roles (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sar_role_permissions (
		role_id  TEXT NOT NULL REFERENCES sar_roles (id) ON DELETE CASCADE,
		resource TEXT NOT NULL,
		action   TEXT NOT NULL,
		PRIMARY KEY (role_id, resource, action)
	)`,
	`CREATE TABLE IF NOT EXISTS sar_user_roles (
		user_id    TEXT NOT NULL,
		role_id    TEXT NOT NULL REFERENCES sar_roles (id) ON DELETE CASCADE,
		tenant_id  TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sar_user_roles_user ON sar_user_roles (user_id)`,
}

// Open connects to Postgres through pgx and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open permission store: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping permission store: %w", err)
	}

	return db, nil
}

type Store struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

var _ authz.PermissionChecker = (*Store)(nil)

func NewStore(db *sql.DB, m *metrics.Metrics) *Store {
	return &Store{db: db, metrics: m}
}

// EnsureSchema creates the role tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure permission schema: %w", err)
		}
	}
	return nil
}

// HasPermission reports whether userID holds resource:action in the
// effective tenant, which is tenantID when set and userTenantID otherwise.
func (s *Store) HasPermission(
	ctx context.Context,
	userID, resource, action, tenantID, userTenantID string,
) (bool, error) {
	ctx, span := tracer.Start(ctx, "infra.rbac.HasPermission")
	defer span.End()

	effective := tenantID
	if effective == "" {
		effective = userTenantID
	}
	span.SetAttributes(
		attribute.String("rbac.resource", resource),
		attribute.String("rbac.action", action),
		attribute.String("rbac.tenant", effective),
	)

	start := time.Now()
	var allowed bool
	err := s.db.QueryRowContext(ctx, hasPermissionQuery,
		userID,
		sql.NullString{String: effective, Valid: effective != ""},
		resource,
		action,
	).Scan(&allowed)
	if err != nil {
		s.metrics.ObservePermissionCheck("error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "permission lookup failed",
			slog.String("resource", resource),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("query permission: %w", err)
	}

	result := "deny"
	if allowed {
		result = "allow"
	}
	s.metrics.ObservePermissionCheck(result, time.Since(start))
	span.SetAttributes(attribute.Bool("rbac.allowed", allowed))

	return allowed, nil
}

// DenyAll is the checker used when no permission store is configured.
type DenyAll struct{}

func (DenyAll) HasPermission(context.Context, string, string, string, string, string) (bool, error) {
	return false, nil
}
