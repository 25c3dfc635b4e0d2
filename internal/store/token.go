package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"statementvault/internal/utils"
	"statementvault/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tokenTableName = "statementvault.download_tokens"

var tokenColumns = utils.StructTagValues(types.DownloadToken{})

type DownloadTokenRepository struct {
	pool *pgxpool.Pool
}

func NewDownloadTokenRepository(pool *pgxpool.Pool) *DownloadTokenRepository {
	return &DownloadTokenRepository{pool: pool}
}

// CreateWithinLimit inserts a freshly issued token, but only while the
// customer holds fewer than maxActive unredeemed, unexpired tokens. Count
// and insert are one statement, so concurrent issuances cannot all observe
// the same count and pile past the ceiling: the insert's WHERE clause
// re-evaluates per statement. Hitting the ceiling maps to
// types.ErrRateLimited; a collision on the token value maps to
// types.ErrTokenExists so the issuer can retry with new randomness.
func (r *DownloadTokenRepository) CreateWithinLimit(ctx context.Context, token *types.DownloadToken, now time.Time, maxActive int64) error {
	activeCount := sq.Expr(
		"(SELECT COUNT(*) FROM "+tokenTableName+" WHERE customer_id = ? AND used = false AND expires_at > ?) < ?",
		token.CustomerID, now, maxActive,
	)

	query, args, err := psql().
		Insert(tokenTableName).
		Columns(tokenColumns...).
		Select(sq.Select().
			Column(sq.Expr("?", token.ID)).
			Column(sq.Expr("?", token.Token)).
			Column(sq.Expr("?", token.StatementID)).
			Column(sq.Expr("?", token.CustomerID)).
			Column(sq.Expr("?", token.ExpiresAt)).
			Column(sq.Expr("?", token.Used)).
			Column(sq.Expr("?", token.UsedAt)).
			Column(sq.Expr("?", token.CreatedAt)).
			Where(activeCount)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate create token query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if uniqueViolation(err, "download_tokens_token_key") {
			return types.ErrTokenExists
		}
		return fmt.Errorf("failed to create download token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrRateLimited
	}

	return nil
}

// Redeem atomically flips used from false to true for a live token and
// returns the consumed row. The conditional UPDATE is the single-use
// guarantee: of any number of concurrent redemptions for the same value,
// exactly one matches the WHERE clause. No matching row (unknown value,
// expired, or already used) maps to types.ErrInvalidToken without
// distinguishing the cases.
func (r *DownloadTokenRepository) Redeem(ctx context.Context, tokenValue string, now time.Time) (*types.DownloadToken, error) {
	query, args, err := psql().
		Update(tokenTableName).
		Set("used", true).
		Set("used_at", now).
		Where(sq.Eq{"token": tokenValue, "used": false}).
		Where(sq.Gt{"expires_at": now}).
		Suffix("RETURNING " + strings.Join(tokenColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate redeem token query: %w", err)
	}

	var token types.DownloadToken
	err = pgxscan.Get(ctx, r.pool, &token, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to redeem download token: %w", err)
	}

	return &token, nil
}

// DeleteExpiredBefore removes tokens whose expiry lies before the cutoff and
// reports how many rows went away. Tokens expired after the cutoff stay
// queryable for audit purposes.
func (r *DownloadTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql().
		Delete(tokenTableName).
		Where(sq.Lt{"expires_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate delete expired tokens query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	return tag.RowsAffected(), nil
}

// TokenByValue is a plain lookup with no state change, used by support
// tooling to inspect a token within its retention window.
func (r *DownloadTokenRepository) TokenByValue(ctx context.Context, tokenValue string) (*types.DownloadToken, error) {
	query, args, err := psql().
		Select(tokenColumns...).
		From(tokenTableName).
		Where(sq.Eq{"token": tokenValue}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token query: %w", err)
	}

	var token types.DownloadToken
	err = pgxscan.Get(ctx, r.pool, &token, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to fetch download token: %w", err)
	}

	return &token, nil
}
