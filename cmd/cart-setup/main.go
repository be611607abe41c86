// Command cart-setup publishes the default config, runs migrations and seeds
// the product catalog.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cart-session/internal/setup"
	"github.com/xenking/cart-session/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		table       string
		opts        setup.Options
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or CART_DATABASE_URL / DATABASE_URL env)")
	flag.StringVar(&table, "table", postgres.DefaultTable, "stored cart table name")
	flag.StringVar(&opts.ConfigPath, "config", "config.yaml", "where to publish the config file")
	flag.StringVar(&opts.ProductsFile, "products-file", "", "JSON file of products to upsert")
	flag.BoolVar(&opts.Force, "f", false, "overwrite an existing config file without asking")
	flag.BoolVar(&opts.Yes, "y", false, "run migrations without asking")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("CART_DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var pool *pgxpool.Pool
	defer func() {
		if pool != nil {
			pool.Close()
		}
	}()

	r := &setup.Runner{
		Console: setup.NewConsole(os.Stdin, os.Stdout),
		Log:     slog.Default(),
		Open: func(ctx context.Context) (setup.Database, error) {
			if databaseURL == "" {
				return nil, errors.New("database URL is required: set --database-url, CART_DATABASE_URL or DATABASE_URL")
			}
			slog.Info("connecting to database")
			p, err := postgres.NewPool(ctx, databaseURL)
			if err != nil {
				return nil, err
			}
			pool = p
			return setup.NewPostgres(p, table), nil
		},
	}

	if err := r.Run(ctx, opts); err != nil {
		slog.Error("setup failed", slog.String("error", err.Error()))
		cancel()
		if pool != nil {
			pool.Close()
		}
		os.Exit(1)
	}

	slog.Info("setup completed successfully")
}
