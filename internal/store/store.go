// Package store is the Postgres implementation of the service storage interfaces.
package store

import (
	"context"
	"errors"

	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/utils"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// mapError turns driver errors into the domain sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRecordNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return domain.ErrDuplicate
	}
	return err
}

// missingOrStale reports why a conditional write touched no rows.
func missingOrStale(ctx context.Context, q querier, table string, id any) error {
	var exists bool
	if err := q.QueryRow(ctx, "select exists(select 1 from "+table+" where id = $1)", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrRecordNotFound
	}
	return domain.ErrStaleWrite
}

func numeric(value decimal.Decimal) pgtype.Numeric {
	return utils.DecimalToNumeric(value)
}

func dec(value pgtype.Numeric) decimal.Decimal {
	return utils.NumericToDecimal(value)
}
