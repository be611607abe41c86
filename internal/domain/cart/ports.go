package cart

import (
	"context"
	"sync"
	"time"
)

// Session is the per-visitor key/value store holding live cart content.
type Session interface {
	Get(key string) (*Content, bool)
	Set(key string, content *Content)
	Has(key string) bool
	Remove(key string)
}

// StoredCart is a durable snapshot of one cart instance.
type StoredCart struct {
	Identifier string
	Instance   string
	Content    []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Repository persists stored carts.
type Repository interface {
	// Delete removes the records for identifier and instance.
	Delete(ctx context.Context, identifier, instance string) error
	// DeleteAll removes every record for identifier regardless of instance.
	DeleteAll(ctx context.Context, identifier string) error
	Insert(ctx context.Context, sc *StoredCart) error
	// FindFirst returns ErrStoredCartNotFound when nothing matches.
	FindFirst(ctx context.Context, identifier, instance string) (*StoredCart, error)
}

// Event names emitted by the cart.
const (
	EventAdded    = "cart.added"
	EventUpdated  = "cart.updated"
	EventRemoved  = "cart.removed"
	EventStored   = "cart.stored"
	EventRestored = "cart.restored"
)

// Event is a fire-and-forget notification. Item is set for row events,
// Identifier for store and restore.
type Event struct {
	Name       string
	Instance   string
	Identifier string
	Item       *Item
}

// Notifier receives cart events. Emit is called inline with the cart
// operation; implementations hand remote delivery off instead of waiting on
// it and never surface delivery failures.
type Notifier interface {
	Emit(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

// Emit calls f.
func (f NotifierFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

type nopNotifier struct{}

func (nopNotifier) Emit(context.Context, Event) {}

// ModelFinder loads the external record an item is associated with.
type ModelFinder interface {
	FindModel(ctx context.Context, id string) (any, error)
}

// ModelFinderFunc adapts a function to ModelFinder.
type ModelFinderFunc func(ctx context.Context, id string) (any, error)

// FindModel calls f.
func (f ModelFinderFunc) FindModel(ctx context.Context, id string) (any, error) {
	return f(ctx, id)
}

// Models is the registry of record types items may be associated with.
type Models struct {
	mu      sync.RWMutex
	finders map[string]ModelFinder
}

// NewModels returns an empty registry.
func NewModels() *Models {
	return &Models{finders: make(map[string]ModelFinder)}
}

// Register adds or replaces the finder for name.
func (m *Models) Register(name string, f ModelFinder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finders[name] = f
}

// Lookup returns the finder for name.
func (m *Models) Lookup(name string) (ModelFinder, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.finders[name]
	return f, ok
}
