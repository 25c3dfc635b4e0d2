package store

import (
	"context"
	"fmt"
	"time"

	"statementvault/internal/utils"
	"statementvault/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const auditTableName = "statementvault.audit_logs"

var auditColumns = utils.StructTagValues(types.AuditLog{})

// AuditLogRepository appends to the audit trail. There is deliberately no
// update or delete method.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

func NewAuditLogRepository(pool *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{pool: pool}
}

func (r *AuditLogRepository) Append(ctx context.Context, entry *types.AuditLog) error {
	if entry.ID == "" {
		entry.ID = utils.NanoID()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}

	query, args, err := psql().
		Insert(auditTableName).
		SetMap(utils.StructToMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate append audit query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to append audit log")
}

// EntriesByCustomer returns a customer's audit trail, newest first.
func (r *AuditLogRepository) EntriesByCustomer(ctx context.Context, customerID string, limit uint64) ([]*types.AuditLog, error) {
	query, args, err := psql().
		Select(auditColumns...).
		From(auditTableName).
		Where(sq.Eq{"customer_id": customerID}).
		OrderBy("occurred_at DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate audit entries query: %w", err)
	}

	entries := make([]*types.AuditLog, 0)
	err = pgxscan.Select(ctx, r.pool, &entries, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audit entries: %w", err)
	}

	return entries, nil
}
