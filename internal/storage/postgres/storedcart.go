package postgres

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"

	"github.com/xenking/cart-session/internal/domain/cart"
)

var _ cart.Repository = (*StoredCartRepository)(nil)

// StoredCartRepository implements cart.Repository backed by PostgreSQL.
// Content is kept gzip-compressed.
type StoredCartRepository struct {
	pool  *pgxpool.Pool
	table string

	deleteSQL    string
	deleteAllSQL string
	insertSQL    string
	findFirstSQL string
}

// NewStoredCartRepository returns a StoredCartRepository on table. An empty
// table selects DefaultTable.
func NewStoredCartRepository(pool *pgxpool.Pool, table string) *StoredCartRepository {
	if table == "" {
		table = DefaultTable
	}
	t := pgx.Identifier{table}.Sanitize()
	return &StoredCartRepository{
		pool:         pool,
		table:        table,
		deleteSQL:    `DELETE FROM ` + t + ` WHERE identifier = $1 AND instance = $2`,
		deleteAllSQL: `DELETE FROM ` + t + ` WHERE identifier = $1`,
		insertSQL: `INSERT INTO ` + t + ` (identifier, instance, content, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
		findFirstSQL: `SELECT identifier, instance, content, created_at, updated_at
			FROM ` + t + ` WHERE identifier = $1 AND instance = $2 ORDER BY id LIMIT 1`,
	}
}

// Table returns the unquoted table name.
func (r *StoredCartRepository) Table() string {
	return r.table
}

// Delete removes the snapshot for identifier and instance.
func (r *StoredCartRepository) Delete(ctx context.Context, identifier, instance string) error {
	if _, err := r.pool.Exec(ctx, r.deleteSQL, identifier, instance); err != nil {
		return fmt.Errorf("deleting stored cart %q/%q: %w", identifier, instance, err)
	}
	return nil
}

// DeleteAll removes every snapshot for identifier.
func (r *StoredCartRepository) DeleteAll(ctx context.Context, identifier string) error {
	if _, err := r.pool.Exec(ctx, r.deleteAllSQL, identifier); err != nil {
		return fmt.Errorf("deleting stored carts %q: %w", identifier, err)
	}
	return nil
}

// Insert persists sc with its content compressed.
func (r *StoredCartRepository) Insert(ctx context.Context, sc *cart.StoredCart) error {
	data, err := compress(sc.Content)
	if err != nil {
		return fmt.Errorf("compressing stored cart: %w", err)
	}
	if _, err := r.pool.Exec(ctx, r.insertSQL,
		sc.Identifier, sc.Instance, data, sc.CreatedAt, sc.UpdatedAt,
	); err != nil {
		return fmt.Errorf("inserting stored cart %q/%q: %w", sc.Identifier, sc.Instance, err)
	}
	return nil
}

// FindFirst returns the oldest snapshot for identifier and instance, or
// cart.ErrStoredCartNotFound.
func (r *StoredCartRepository) FindFirst(ctx context.Context, identifier, instance string) (*cart.StoredCart, error) {
	rows, err := r.pool.Query(ctx, r.findFirstSQL, identifier, instance)
	if err != nil {
		return nil, fmt.Errorf("finding stored cart %q/%q: %w", identifier, instance, err)
	}

	sc, err := pgx.CollectExactlyOneRow(rows, scanStoredCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrStoredCartNotFound
		}
		return nil, fmt.Errorf("finding stored cart %q/%q: %w", identifier, instance, err)
	}
	return sc, nil
}

func scanStoredCart(row pgx.CollectableRow) (*cart.StoredCart, error) {
	var (
		sc         cart.StoredCart
		compressed []byte
		created    time.Time
		updated    time.Time
	)
	if err := row.Scan(&sc.Identifier, &sc.Instance, &compressed, &created, &updated); err != nil {
		return nil, err
	}
	data, err := decompress(compressed)
	if err != nil {
		return nil, errors.Wrap(err, "decompress content")
	}
	sc.Content = data
	sc.CreatedAt = created
	sc.UpdatedAt = updated
	return &sc, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := pgzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()
	return io.ReadAll(zr)
}
