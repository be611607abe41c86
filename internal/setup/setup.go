// Package setup prepares a cart deployment: it publishes the default config
// file, runs the database migrations and seeds the product catalog.
package setup

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/cart-session/internal/domain/product"
)

// DefaultConfig is the config file written by PublishConfig.
//
//go:embed config.yaml
var DefaultConfig []byte

// Console asks the operator questions.
type Console interface {
	// Confirm asks a yes/no question, returning def on an empty answer.
	Confirm(question string, def bool) (bool, error)
}

// Database is the part of the store setup needs.
type Database interface {
	Migrate(ctx context.Context) error
	UpsertProducts(ctx context.Context, products []product.Product) error
}

// Options select what Run does.
type Options struct {
	ConfigPath string
	// Force overwrites an existing config file without asking.
	Force bool
	// Yes runs migrations without asking.
	Yes bool
	// ProductsFile is a JSON array of products to upsert. Empty skips seeding.
	ProductsFile string
}

// Runner executes the setup steps.
type Runner struct {
	Console Console
	Log     *slog.Logger
	// Open connects to the database. It is called at most once, and only
	// when a step needs the database.
	Open func(ctx context.Context) (Database, error)

	db Database
}

// Run publishes the config, then migrates and seeds as selected by opts.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	if err := r.PublishConfig(opts.ConfigPath, opts.Force); err != nil {
		return errors.Wrap(err, "publish config")
	}

	migrate := opts.Yes
	if !migrate {
		ok, err := r.Console.Confirm("Run database migrations now?", true)
		if err != nil {
			return errors.Wrap(err, "confirm migrations")
		}
		migrate = ok
	}
	if migrate {
		if err := r.migrate(ctx); err != nil {
			return errors.Wrap(err, "run migrations")
		}
	} else {
		r.Log.Info("skipping migrations")
	}

	if opts.ProductsFile != "" {
		if err := r.seedProducts(ctx, opts.ProductsFile); err != nil {
			return errors.Wrap(err, "seed products")
		}
	}
	return nil
}

// PublishConfig writes DefaultConfig to path. An existing file is only
// replaced when force is set or the operator confirms.
func (r *Runner) PublishConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		ok, err := r.Console.Confirm(fmt.Sprintf("%s already exists. Overwrite?", path), false)
		if err != nil {
			return err
		}
		if !ok {
			r.Log.Info("keeping existing config", slog.String("path", path))
			return nil
		}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "stat config")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create config dir")
		}
	}
	if err := os.WriteFile(path, DefaultConfig, 0o644); err != nil {
		return errors.Wrap(err, "write config")
	}
	r.Log.Info("published config", slog.String("path", path))
	return nil
}

func (r *Runner) database(ctx context.Context) (Database, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := r.Open(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	r.db = db
	return db, nil
}

func (r *Runner) migrate(ctx context.Context) error {
	db, err := r.database(ctx)
	if err != nil {
		return err
	}
	r.Log.Info("running migrations")
	return db.Migrate(ctx)
}

func (r *Runner) seedProducts(ctx context.Context, path string) error {
	r.Log.Info("reading products file", slog.String("path", path))

	products, err := ReadProducts(path)
	if err != nil {
		return err
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	r.Log.Info("upserting products", slog.Int("count", len(products)))
	if err := db.UpsertProducts(ctx, products); err != nil {
		return err
	}
	for _, p := range products {
		r.Log.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

// ReadProducts parses a JSON array of products.
func ReadProducts(path string) ([]product.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}

	var products []product.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	for i, p := range products {
		if p.ID == "" {
			return nil, errors.Errorf("product %d: id is required", i)
		}
		if p.Price.IsNegative() {
			return nil, errors.Errorf("product %s: price must not be negative", p.ID)
		}
	}
	return products, nil
}

type stdConsole struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole returns a Console reading answers from in and writing prompts
// to out.
func NewConsole(in io.Reader, out io.Writer) Console {
	return &stdConsole{in: bufio.NewReader(in), out: out}
}

func (c *stdConsole) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		if _, err := fmt.Fprintf(c.out, "%s %s ", question, hint); err != nil {
			return false, err
		}
		line, err := c.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if errors.Is(err, io.EOF) {
			return def, nil
		}
	}
}
