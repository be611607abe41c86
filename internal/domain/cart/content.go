package cart

import "slices"

// Content maps rowID to Item and keeps insertion order for display.
type Content struct {
	order []string
	items map[string]*Item
}

// NewContent returns an empty Content.
func NewContent() *Content {
	return &Content{items: make(map[string]*Item)}
}

// Len returns the number of rows.
func (c *Content) Len() int {
	return len(c.order)
}

// Has reports whether rowID is present.
func (c *Content) Has(rowID string) bool {
	_, ok := c.items[rowID]
	return ok
}

// Get returns the item at rowID.
func (c *Content) Get(rowID string) (*Item, bool) {
	item, ok := c.items[rowID]
	return item, ok
}

// Put stores item under its rowID. Replacing an existing row keeps its position.
func (c *Content) Put(item *Item) {
	if _, ok := c.items[item.rowID]; !ok {
		c.order = append(c.order, item.rowID)
	}
	c.items[item.rowID] = item
}

// Delete removes rowID and returns the removed item.
func (c *Content) Delete(rowID string) (*Item, bool) {
	item, ok := c.items[rowID]
	if !ok {
		return nil, false
	}
	delete(c.items, rowID)
	c.order = slices.DeleteFunc(c.order, func(id string) bool { return id == rowID })
	return item, true
}

// RowIDs returns the row identifiers in insertion order.
func (c *Content) RowIDs() []string {
	return slices.Clone(c.order)
}

// Items returns the items in insertion order.
func (c *Content) Items() []*Item {
	out := make([]*Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// Filter returns the rows for which keep returns true.
func (c *Content) Filter(keep func(*Item) bool) *Content {
	out := NewContent()
	for _, item := range c.Items() {
		if keep(item) {
			out.Put(item)
		}
	}
	return out
}

// Clone deep-copies the content.
func (c *Content) Clone() *Content {
	out := &Content{
		order: slices.Clone(c.order),
		items: make(map[string]*Item, len(c.items)),
	}
	for id, item := range c.items {
		out.items[id] = item.clone()
	}
	return out
}
