package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Buyable is anything that can describe itself as a cart line.
type Buyable interface {
	BuyableIdentifier(options Options) string
	BuyableDescription(options Options) string
	BuyablePrice(options Options) decimal.Decimal
}

// ModelNamer is implemented by buyables that are also resolvable records.
// Items built from such a buyable are associated with ModelName.
type ModelNamer interface {
	ModelName() string
}

// Attributes is the plain-field form of an item.
type Attributes struct {
	ID      string
	Name    string
	Price   decimal.Decimal
	Qty     int
	Options Options
}

// Patch is a partial item update. Nil fields keep their prior value.
type Patch struct {
	ID      *string
	Name    *string
	Qty     *int
	Price   *decimal.Decimal
	Options Options
}

// Item is one product line in a cart.
type Item struct {
	rowID   string
	id      string
	name    string
	qty     int
	price   decimal.Decimal
	options Options
	taxRate decimal.Decimal
	model   string
	saved   bool
}

// NewItem validates the arguments and derives the rowID. The quantity stays
// zero until SetQuantity is called.
func NewItem(id, name string, price decimal.Decimal, options Options) (*Item, error) {
	if err := validate(id, name, price); err != nil {
		return nil, err
	}
	options = options.Clone()
	return &Item{
		rowID:   RowID(id, options),
		id:      id,
		name:    name,
		price:   price,
		options: options,
	}, nil
}

// NewItemFromBuyable builds an item from b using the given options.
func NewItemFromBuyable(b Buyable, options Options) (*Item, error) {
	item, err := NewItem(b.BuyableIdentifier(options), b.BuyableDescription(options), b.BuyablePrice(options), options)
	if err != nil {
		return nil, err
	}
	if m, ok := b.(ModelNamer); ok {
		item.Associate(m.ModelName())
	}
	return item, nil
}

// NewItemFromAttributes builds an item from plain fields. Qty is applied
// only when positive.
func NewItemFromAttributes(a Attributes) (*Item, error) {
	item, err := NewItem(a.ID, a.Name, a.Price, a.Options)
	if err != nil {
		return nil, err
	}
	if a.Qty > 0 {
		item.qty = a.Qty
	}
	return item, nil
}

func validate(id, name string, price decimal.Decimal) error {
	if strings.TrimSpace(id) == "" {
		return invalid("id", "must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return invalid("name", "must not be empty")
	}
	if price.IsNegative() {
		return invalid("price", "must not be negative")
	}
	return nil
}

// RowID returns the identity of the line.
func (i *Item) RowID() string { return i.rowID }

// ID returns the product identifier.
func (i *Item) ID() string { return i.id }

// Name returns the display name.
func (i *Item) Name() string { return i.name }

// Qty returns the quantity.
func (i *Item) Qty() int { return i.qty }

// Price returns the unit price without tax.
func (i *Item) Price() decimal.Decimal { return i.price }

// Options returns a copy of the selected options.
func (i *Item) Options() Options { return i.options.Clone() }

// TaxRate returns the tax percentage.
func (i *Item) TaxRate() decimal.Decimal { return i.taxRate }

// Model returns the associated model name, or "".
func (i *Item) Model() string { return i.model }

// Saved reports whether the line is saved for later.
func (i *Item) Saved() bool { return i.saved }

// RowTotal is the unit price. Tax is added separately by the cart total.
func (i *Item) RowTotal() decimal.Decimal {
	return i.price
}

// Subtotal is qty * price.
func (i *Item) Subtotal() decimal.Decimal {
	return i.price.Mul(i.quantity())
}

// Tax is the per-unit tax, rounded to 4 places.
func (i *Item) Tax() decimal.Decimal {
	return i.price.Mul(i.taxRate).Div(hundred).Round(4)
}

// TaxTotal is Tax * qty.
func (i *Item) TaxTotal() decimal.Decimal {
	return i.Tax().Mul(i.quantity())
}

// Total is qty * RowTotal.
func (i *Item) Total() decimal.Decimal {
	return i.RowTotal().Mul(i.quantity())
}

func (i *Item) quantity() decimal.Decimal {
	return decimal.NewFromInt(int64(i.qty))
}

// FormatPrice renders Price.
func (i *Item) FormatPrice(f NumberFormat, opts ...FormatOption) string {
	return f.Format(i.Price(), opts...)
}

// FormatRowTotal renders RowTotal.
func (i *Item) FormatRowTotal(f NumberFormat, opts ...FormatOption) string {
	return f.Format(i.RowTotal(), opts...)
}

// FormatSubtotal renders Subtotal.
func (i *Item) FormatSubtotal(f NumberFormat, opts ...FormatOption) string {
	return f.Format(i.Subtotal(), opts...)
}

// FormatTax renders Tax.
func (i *Item) FormatTax(f NumberFormat, opts ...FormatOption) string {
	return f.Format(i.Tax(), opts...)
}

// FormatTaxTotal renders TaxTotal.
func (i *Item) FormatTaxTotal(f NumberFormat, opts ...FormatOption) string {
	return f.Format(i.TaxTotal(), opts...)
}

// FormatTotal renders Total.
func (i *Item) FormatTotal(f NumberFormat, opts ...FormatOption) string {
	return f.Format(i.Total(), opts...)
}

// SetQuantity sets a strictly positive quantity.
func (i *Item) SetQuantity(qty int) error {
	if qty <= 0 {
		return invalid("qty", "must be greater than 0")
	}
	i.qty = qty
	return nil
}

// UpdateFromBuyable re-reads id, name and price from b with the current
// options. The rowID follows the new id.
func (i *Item) UpdateFromBuyable(b Buyable) error {
	id := b.BuyableIdentifier(i.options)
	name := b.BuyableDescription(i.options)
	price := b.BuyablePrice(i.options)
	if err := validate(id, name, price); err != nil {
		return err
	}
	i.id, i.name, i.price = id, name, price
	i.rowID = RowID(i.id, i.options)
	return nil
}

// UpdateFromPatch applies p and recomputes the rowID, which may move the
// item to another cart slot. Qty is stored as given; the owning cart
// removes lines whose quantity drops to zero or below.
func (i *Item) UpdateFromPatch(p Patch) error {
	id, name, price := i.id, i.name, i.price
	if p.ID != nil {
		id = *p.ID
	}
	if p.Name != nil {
		name = *p.Name
	}
	if p.Price != nil {
		price = *p.Price
	}
	if err := validate(id, name, price); err != nil {
		return err
	}

	i.id, i.name, i.price = id, name, price
	if p.Qty != nil {
		i.qty = *p.Qty
	}
	if p.Options != nil {
		i.options = p.Options.Clone()
	}
	i.rowID = RowID(i.id, i.options)
	return nil
}

// SetTaxRate sets the tax percentage.
func (i *Item) SetTaxRate(rate decimal.Decimal) *Item {
	i.taxRate = rate
	return i
}

// SetSaved marks the line as saved for later.
func (i *Item) SetSaved(saved bool) *Item {
	i.saved = saved
	return i
}

// Associate links the line to an external record type.
func (i *Item) Associate(model string) *Item {
	i.model = model
	return i
}

func (i *Item) clone() *Item {
	c := *i
	c.options = i.options.Clone()
	return &c
}
