package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aulalink/aulalink/internal/audit"
)

// AuditSink persiste registros en la tabla append-only audit_log.
// El core jamás la actualiza ni borra; la retención es gobernanza externa.
type AuditSink struct {
	pool *pgxpool.Pool
}

func (s *Store) Audit() *AuditSink {
	return &AuditSink{pool: s.pool}
}

func (s *AuditSink) Record(ctx context.Context, e audit.Entry) error {
	const q = `
		INSERT INTO audit_log (id, ts, actor_user_id, actor_tenant_id, action,
		                       target_tenant_id, target_resource_type, target_resource_id, severity, detail)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, NULLIF($10, ''))`
	_, err := s.pool.Exec(ctx, q,
		e.ID, e.Timestamp, e.ActorUserID, e.ActorTenantID, e.Action,
		e.TargetTenantID, e.TargetResourceType, e.TargetResourceID, e.Severity.String(), e.Detail)
	if err != nil {
		return fmt.Errorf("pg: insert audit record: %w", err)
	}
	return nil
}
