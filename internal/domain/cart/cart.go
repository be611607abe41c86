// Package cart implements a session-backed shopping cart: line identity,
// quantity merging, derived totals, and store/restore of cart snapshots.
//
// A Cart is request-scoped and not safe for concurrent use. Every operation
// loads the active instance from the Session, works on a private copy, and
// writes the copy back only after all validation has passed.
package cart

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultInstance is the instance selected by New.
const DefaultInstance = "default"

const instancePrefix = "cart."

// Config holds the cart defaults.
type Config struct {
	// TaxRate is applied to added lines that carry no rate of their own.
	TaxRate decimal.Decimal
	Format  NumberFormat
}

// DefaultConfig returns a 16% tax rate and DefaultNumberFormat.
func DefaultConfig() Config {
	return Config{
		TaxRate: decimal.NewFromInt(16),
		Format:  DefaultNumberFormat(),
	}
}

// Line describes one line to add. When Buyable is set, ID, Name and Price
// are ignored and Qty defaults to 1.
type Line struct {
	ID      string
	Name    string
	Qty     int
	Price   decimal.Decimal
	Options Options
	// TaxRate overrides Config.TaxRate when non-nil.
	TaxRate *decimal.Decimal
	Buyable Buyable
}

// Totals holds the unformatted cart sums.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Cart manages the items of one named instance within a Session.
type Cart struct {
	cfg      Config
	session  Session
	stored   Repository
	events   Notifier
	models   *Models
	instance string
	now      func() time.Time
}

// New creates a Cart on the default instance. stored may be nil when
// Store/Restore are not used; events and models may be nil.
func New(cfg Config, session Session, stored Repository, events Notifier, models *Models) *Cart {
	if events == nil {
		events = nopNotifier{}
	}
	if models == nil {
		models = NewModels()
	}
	c := &Cart{
		cfg:     cfg,
		session: session,
		stored:  stored,
		events:  events,
		models:  models,
		now:     time.Now,
	}
	return c.SetInstance(DefaultInstance)
}

// SetInstance switches the active instance. An empty name selects
// DefaultInstance.
func (c *Cart) SetInstance(name string) *Cart {
	if name == "" {
		name = DefaultInstance
	}
	c.instance = instancePrefix + name
	return c
}

// CurrentInstance returns the active instance name without its prefix.
func (c *Cart) CurrentInstance() string {
	return strings.TrimPrefix(c.instance, instancePrefix)
}

// Format returns the configured number format.
func (c *Cart) Format() NumberFormat {
	return c.cfg.Format
}

// Add builds a line from plain fields and adds it.
func (c *Cart) Add(ctx context.Context, id, name string, qty int, price decimal.Decimal, options Options) (*Item, error) {
	return c.AddOne(ctx, Line{
		ID:      id,
		Name:    name,
		Qty:     qty,
		Price:   price,
		Options: options,
	})
}

// AddOne adds a single line. A line whose rowID is already present has its
// quantity added to the existing row.
func (c *Cart) AddOne(ctx context.Context, line Line) (*Item, error) {
	item, err := c.buildItem(line)
	if err != nil {
		return nil, err
	}
	out, err := c.put(ctx, item)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// AddMany adds every line in order. All lines are validated first; nothing
// is written when any of them is invalid.
func (c *Cart) AddMany(ctx context.Context, lines []Line) ([]*Item, error) {
	items := make([]*Item, len(lines))
	for i, line := range lines {
		item, err := c.buildItem(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i)
		}
		items[i] = item
	}

	return c.put(ctx, items...)
}

// AddItem adds a pre-built item as is. Its quantity must already be set.
func (c *Cart) AddItem(ctx context.Context, item *Item) (*Item, error) {
	if item == nil {
		return nil, invalid("item", "must not be nil")
	}
	if item.qty <= 0 {
		return nil, invalid("qty", "must be greater than 0")
	}
	out, err := c.put(ctx, item.clone())
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (c *Cart) buildItem(line Line) (*Item, error) {
	var (
		item *Item
		err  error
		qty  = line.Qty
	)
	if line.Buyable != nil {
		item, err = NewItemFromBuyable(line.Buyable, line.Options)
		if qty == 0 {
			qty = 1
		}
	} else {
		item, err = NewItemFromAttributes(Attributes{
			ID:      line.ID,
			Name:    line.Name,
			Price:   line.Price,
			Options: line.Options,
		})
	}
	if err != nil {
		return nil, err
	}
	if err := item.SetQuantity(qty); err != nil {
		return nil, err
	}

	if line.TaxRate != nil {
		item.SetTaxRate(*line.TaxRate)
	} else {
		item.SetTaxRate(c.cfg.TaxRate)
	}
	return item, nil
}

// put merges items into the active instance in order. Nothing is written
// when a merged quantity does not fit in an int.
func (c *Cart) put(ctx context.Context, items ...*Item) ([]*Item, error) {
	content := c.content()
	for i, item := range items {
		if existing, ok := content.Get(item.rowID); ok {
			qty, err := addQty(item.qty, existing.qty)
			if err != nil {
				if len(items) > 1 {
					return nil, errors.Wrapf(err, "line %d", i)
				}
				return nil, err
			}
			item.qty = qty
		}
		content.Put(item)
	}
	c.session.Set(c.instance, content)

	out := make([]*Item, len(items))
	for i, item := range items {
		c.emit(ctx, EventAdded, item)
		out[i] = item.clone()
	}
	return out, nil
}

// addQty returns a+b, failing when the sum overflows.
func addQty(a, b int) (int, error) {
	if (b > 0 && a > math.MaxInt-b) || (b < 0 && a < math.MinInt-b) {
		return 0, invalid("qty", "too large")
	}
	return a + b, nil
}

// UpdateQty sets the quantity of a row. A quantity of zero or less removes
// the row and returns a nil item.
func (c *Cart) UpdateQty(ctx context.Context, rowID string, qty int) (*Item, error) {
	return c.update(ctx, rowID, func(item *Item) error {
		item.qty = qty
		return nil
	})
}

// UpdateFromBuyable re-syncs id, name and price of a row from b.
func (c *Cart) UpdateFromBuyable(ctx context.Context, rowID string, b Buyable) (*Item, error) {
	return c.update(ctx, rowID, func(item *Item) error {
		return item.UpdateFromBuyable(b)
	})
}

// UpdatePatch applies a partial update to a row. When the patch changes the
// row identity, the row moves to its new rowID and its quantity is added to
// any row already there. A resulting quantity of zero or less removes the
// row and returns a nil item.
func (c *Cart) UpdatePatch(ctx context.Context, rowID string, p Patch) (*Item, error) {
	return c.update(ctx, rowID, func(item *Item) error {
		return item.UpdateFromPatch(p)
	})
}

func (c *Cart) update(ctx context.Context, rowID string, mutate func(*Item) error) (*Item, error) {
	content := c.content()
	item, ok := content.Get(rowID)
	if !ok {
		return nil, &RowNotFoundError{RowID: rowID}
	}
	if err := mutate(item); err != nil {
		return nil, err
	}

	if item.rowID != rowID {
		content.Delete(rowID)
		if existing, ok := content.Get(item.rowID); ok {
			qty, err := addQty(item.qty, existing.qty)
			if err != nil {
				return nil, err
			}
			item.qty = qty
		}
	}

	if item.qty <= 0 {
		content.Delete(item.rowID)
		c.session.Set(c.instance, content)
		c.emit(ctx, EventRemoved, item)
		return nil, nil
	}

	content.Put(item)
	c.session.Set(c.instance, content)
	c.emit(ctx, EventUpdated, item)
	return item.clone(), nil
}

// Remove deletes a row.
func (c *Cart) Remove(ctx context.Context, rowID string) error {
	content := c.content()
	item, ok := content.Delete(rowID)
	if !ok {
		return &RowNotFoundError{RowID: rowID}
	}
	c.session.Set(c.instance, content)
	c.emit(ctx, EventRemoved, item)
	return nil
}

// Get returns a copy of the row.
func (c *Cart) Get(rowID string) (*Item, error) {
	item, ok := c.content().Get(rowID)
	if !ok {
		return nil, &RowNotFoundError{RowID: rowID}
	}
	return item, nil
}

// Destroy clears the active instance.
func (c *Cart) Destroy() {
	c.session.Remove(c.instance)
}

// Content returns a snapshot of the active instance. It is never nil.
func (c *Cart) Content() *Content {
	return c.content()
}

// Count returns the sum of all quantities.
func (c *Cart) Count() int {
	n := 0
	for _, item := range c.content().Items() {
		n += item.qty
	}
	return n
}

// Totals returns Σ qty*price, Σ qty*tax and their sum.
func (c *Cart) Totals() Totals {
	t := Totals{
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
	}
	for _, item := range c.content().Items() {
		t.Subtotal = t.Subtotal.Add(item.Total())
		t.Tax = t.Tax.Add(item.TaxTotal())
	}
	t.Total = t.Subtotal.Add(t.Tax)
	return t
}

// Total renders Σ (qty*rowTotal + qty*tax).
func (c *Cart) Total(opts ...FormatOption) string {
	return c.cfg.Format.Format(c.Totals().Total, opts...)
}

// Tax renders Σ qty*tax.
func (c *Cart) Tax(opts ...FormatOption) string {
	return c.cfg.Format.Format(c.Totals().Tax, opts...)
}

// Subtotal renders Σ qty*price.
func (c *Cart) Subtotal(opts ...FormatOption) string {
	return c.cfg.Format.Format(c.Totals().Subtotal, opts...)
}

// Search returns the rows matching pred.
func (c *Cart) Search(pred func(*Item) bool) *Content {
	return c.content().Filter(pred)
}

// Associate links a row to a registered model.
func (c *Cart) Associate(rowID, model string) error {
	if _, ok := c.models.Lookup(model); !ok {
		return &UnknownModelError{Model: model}
	}
	return c.modify(rowID, func(item *Item) {
		item.Associate(model)
	})
}

// SetTax sets the tax rate of a row.
func (c *Cart) SetTax(rowID string, rate decimal.Decimal) error {
	return c.modify(rowID, func(item *Item) {
		item.SetTaxRate(rate)
	})
}

// SetSaved flags a row as saved for later.
func (c *Cart) SetSaved(rowID string, saved bool) error {
	return c.modify(rowID, func(item *Item) {
		item.SetSaved(saved)
	})
}

func (c *Cart) modify(rowID string, fn func(*Item)) error {
	content := c.content()
	item, ok := content.Get(rowID)
	if !ok {
		return &RowNotFoundError{RowID: rowID}
	}
	fn(item)
	content.Put(item)
	c.session.Set(c.instance, content)
	return nil
}

// ResolveModel loads the record associated with item, or returns nil when
// the item has no association.
func (c *Cart) ResolveModel(ctx context.Context, item *Item) (any, error) {
	if item.model == "" {
		return nil, nil
	}
	f, ok := c.models.Lookup(item.model)
	if !ok {
		return nil, &UnknownModelError{Model: item.model}
	}
	m, err := f.FindModel(ctx, item.id)
	if err != nil {
		return nil, errors.Wrapf(err, "find %s %s", item.model, item.id)
	}
	return m, nil
}

// Store snapshots the active instance under identifier, replacing any
// earlier snapshot for the same identifier and instance. The delete and the
// insert are not atomic.
func (c *Cart) Store(ctx context.Context, identifier string) error {
	if err := c.checkStored(identifier); err != nil {
		return err
	}
	instance := c.CurrentInstance()
	data := EncodeContent(c.content())

	if err := c.stored.Delete(ctx, identifier, instance); err != nil {
		return errors.Wrap(err, "delete stored cart")
	}

	now := c.now()
	if err := c.stored.Insert(ctx, &StoredCart{
		Identifier: identifier,
		Instance:   instance,
		Content:    data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return errors.Wrap(err, "insert stored cart")
	}

	c.events.Emit(ctx, Event{Name: EventStored, Instance: instance, Identifier: identifier})
	return nil
}

// Restore merges the snapshot stored under identifier for the active
// instance into the live content. Stored rows replace live rows with the
// same rowID; other live rows are kept. Restore is a no-op when nothing is
// stored.
func (c *Cart) Restore(ctx context.Context, identifier string) error {
	if err := c.checkStored(identifier); err != nil {
		return err
	}
	sc, err := c.stored.FindFirst(ctx, identifier, c.CurrentInstance())
	if err != nil {
		if errors.Is(err, ErrStoredCartNotFound) {
			return nil
		}
		return errors.Wrap(err, "find stored cart")
	}

	stored, err := DecodeContent(sc.Content)
	if err != nil {
		return err
	}

	previous := c.instance
	defer func() { c.instance = previous }()
	c.SetInstance(sc.Instance)

	content := c.content()
	for _, item := range stored.Items() {
		content.Put(item)
	}
	c.session.Set(c.instance, content)

	c.events.Emit(ctx, Event{Name: EventRestored, Instance: c.CurrentInstance(), Identifier: identifier})
	return nil
}

// DeleteStored drops every snapshot stored under identifier.
func (c *Cart) DeleteStored(ctx context.Context, identifier string) error {
	if err := c.checkStored(identifier); err != nil {
		return err
	}
	if err := c.stored.DeleteAll(ctx, identifier); err != nil {
		return errors.Wrap(err, "delete stored carts")
	}
	return nil
}

func (c *Cart) checkStored(identifier string) error {
	if c.stored == nil {
		return errors.New("cart has no stored cart repository")
	}
	if strings.TrimSpace(identifier) == "" {
		return invalid("identifier", "must not be empty")
	}
	return nil
}

func (c *Cart) content() *Content {
	if content, ok := c.session.Get(c.instance); ok && content != nil {
		return content.Clone()
	}
	return NewContent()
}

func (c *Cart) emit(ctx context.Context, name string, item *Item) {
	c.events.Emit(ctx, Event{
		Name:     name,
		Instance: c.CurrentInstance(),
		Item:     item.clone(),
	})
}
