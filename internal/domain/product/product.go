// Package product holds the catalog records that cart lines can be built
// from and associated with.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cart-session/internal/domain/cart"
)

// ModelName is the name products are registered under for cart
// associations.
const ModelName = "product"

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

var (
	_ cart.Buyable    = (*Product)(nil)
	_ cart.ModelNamer = (*Product)(nil)
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

// BuyableIdentifier implements cart.Buyable.
func (p *Product) BuyableIdentifier(cart.Options) string { return p.ID }

// BuyableDescription implements cart.Buyable.
func (p *Product) BuyableDescription(cart.Options) string { return p.Name }

// BuyablePrice implements cart.Buyable. Options do not affect the price.
func (p *Product) BuyablePrice(cart.Options) decimal.Decimal { return p.Price }

// ModelName implements cart.ModelNamer.
func (p *Product) ModelName() string { return ModelName }

// Repository defines operations on the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Upsert(ctx context.Context, products []Product) error
}
