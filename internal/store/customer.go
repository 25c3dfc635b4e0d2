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

const customerTableName = "statementvault.customers"

var customerColumns = utils.StructTagValues(types.Customer{})

type CustomerRepository struct {
	pool *pgxpool.Pool
}

func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) Customer(ctx context.Context, customerID string) (*types.Customer, error) {
	query, args, err := psql().
		Select(customerColumns...).
		From(customerTableName).
		Where(sq.Eq{"id": customerID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate customer query: %w", err)
	}

	var customer types.Customer
	err = pgxscan.Get(ctx, r.pool, &customer, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to fetch customer: %w", err)
	}

	return &customer, nil
}

func (r *CustomerRepository) CustomerByEmail(ctx context.Context, email string) (*types.Customer, error) {
	query, args, err := psql().
		Select(customerColumns...).
		From(customerTableName).
		Where(sq.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate customer-by-email query: %w", err)
	}

	var customer types.Customer
	err = pgxscan.Get(ctx, r.pool, &customer, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to fetch customer by email: %w", err)
	}

	return &customer, nil
}

func (r *CustomerRepository) Create(ctx context.Context, customer *types.Customer) error {
	now := time.Now()
	if customer.ID == "" {
		customer.ID = utils.NanoID()
	}
	customer.CreatedAt = now
	customer.UpdatedAt = now

	query, args, err := psql().
		Insert(customerTableName).
		SetMap(utils.StructToMap(customer)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate create customer query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}
