// Package postgres implements the cart and catalog repositories on
// PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cart-session/db"
)

// DefaultTable is the stored cart table name.
const DefaultTable = "shopping_cart"

var schema = template.Must(template.New("schema").Parse(db.Schema))

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RenderSchema returns the DDL with table as the stored cart table.
func RenderSchema(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	var b strings.Builder
	err := schema.Execute(&b, struct{ Table, Index string }{
		Table: pgx.Identifier{table}.Sanitize(),
		Index: pgx.Identifier{table + "_identifier_instance_idx"}.Sanitize(),
	})
	if err != nil {
		return "", fmt.Errorf("rendering schema: %w", err)
	}
	return b.String(), nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, table string) error {
	ddl, err := RenderSchema(table)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
