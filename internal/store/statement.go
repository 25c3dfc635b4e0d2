package store

import (
	"context"
	"fmt"

	"statementvault/internal/utils"
	"statementvault/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const statementTableName = "statementvault.account_statements"

var statementColumns = utils.StructTagValues(types.Statement{})

type StatementRepository struct {
	pool *pgxpool.Pool
}

func NewStatementRepository(pool *pgxpool.Pool) *StatementRepository {
	return &StatementRepository{pool: pool}
}

// Create inserts the statement metadata row. A unique violation on the
// (customer_id, statement_period) pair maps to types.ErrDuplicatePeriod.
func (r *StatementRepository) Create(ctx context.Context, statement *types.Statement) error {
	query, args, err := psql().
		Insert(statementTableName).
		SetMap(utils.StructToMap(statement)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate create statement query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		if uniqueViolation(err, "account_statements_customer_period_key") {
			return types.ErrDuplicatePeriod
		}
		return fmt.Errorf("failed to create statement: %w", err)
	}

	return nil
}

// StatementByIDAndCustomer scopes the lookup to the owning customer. A
// statement that exists but belongs to someone else is reported as not
// found.
func (r *StatementRepository) StatementByIDAndCustomer(ctx context.Context, statementID, customerID string) (*types.Statement, error) {
	query, args, err := psql().
		Select(statementColumns...).
		From(statementTableName).
		Where(sq.Eq{"id": statementID, "customer_id": customerID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate statement query: %w", err)
	}

	var statement types.Statement
	err = pgxscan.Get(ctx, r.pool, &statement, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrStatementNotFound
		}
		return nil, fmt.Errorf("failed to fetch statement: %w", err)
	}

	return &statement, nil
}

func (r *StatementRepository) StatementByCustomerAndPeriod(ctx context.Context, customerID, period string) (*types.Statement, error) {
	query, args, err := psql().
		Select(statementColumns...).
		From(statementTableName).
		Where(sq.Eq{"customer_id": customerID, "statement_period": period}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate statement-by-period query: %w", err)
	}

	var statement types.Statement
	err = pgxscan.Get(ctx, r.pool, &statement, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrStatementNotFound
		}
		return nil, fmt.Errorf("failed to fetch statement by period: %w", err)
	}

	return &statement, nil
}

// StatementsByCustomer lists newest period first, creation time breaking
// ties.
func (r *StatementRepository) StatementsByCustomer(ctx context.Context, customerID string) ([]*types.Statement, error) {
	query, args, err := psql().
		Select(statementColumns...).
		From(statementTableName).
		Where(sq.Eq{"customer_id": customerID}).
		OrderBy("statement_period DESC", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate statements query: %w", err)
	}

	statements := make([]*types.Statement, 0)
	err = pgxscan.Select(ctx, r.pool, &statements, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch statements: %w", err)
	}

	return statements, nil
}

func (r *StatementRepository) Delete(ctx context.Context, statementID, customerID string) error {
	query, args, err := psql().
		Delete(statementTableName).
		Where(sq.Eq{"id": statementID, "customer_id": customerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete statement query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete statement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrStatementNotFound
	}

	return nil
}
