package setup

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cart-session/internal/domain/product"
	"github.com/xenking/cart-session/internal/storage/postgres"
)

type pgDatabase struct {
	pool     *pgxpool.Pool
	table    string
	products *postgres.ProductRepository
}

// NewPostgres returns a Database backed by pool, migrating the stored cart
// table named table.
func NewPostgres(pool *pgxpool.Pool, table string) Database {
	return &pgDatabase{
		pool:     pool,
		table:    table,
		products: postgres.NewProductRepository(pool),
	}
}

func (d *pgDatabase) Migrate(ctx context.Context) error {
	return postgres.RunMigrations(ctx, d.pool, d.table)
}

func (d *pgDatabase) UpsertProducts(ctx context.Context, products []product.Product) error {
	return d.products.Upsert(ctx, products)
}
