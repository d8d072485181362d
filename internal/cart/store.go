package cart

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/shopspring/decimal"
)

const defaultPersistTimeout = 2 * time.Second

// Observer receives the post-mutation snapshot. Observers run synchronously
// on the mutating goroutine and must not mutate the store.
type Observer func(Snapshot)

type StoreParams struct {
	Persister      Persister
	Logger         *logger.Logger
	Metrics        *metrics.CartMetrics
	PersistTimeout time.Duration
}

// Store is the single writer of the cart's line items.
type Store struct {
	// mu guards items and observers.
	mu    sync.Mutex
	items []LineItem

	// seq orders notification and persistence across mutations. It is taken
	// before mu is released so observers see mutations in issuance order.
	seq sync.Mutex

	observers  []observerEntry
	nextID     int
	persister  Persister
	logg       *logger.Logger
	metrics    *metrics.CartMetrics
	timeout    time.Duration
	degraded   atomic.Bool
	persistErr atomic.Pointer[string]
	// unloaded is set while the persisted cart could not be read.
	unloaded atomic.Bool
}

type observerEntry struct {
	id int
	fn Observer
}

// NewStore restores the persisted cart. A failed load is logged and the store
// starts empty in degraded mode.
func NewStore(ctx context.Context, params StoreParams) (*Store, error) {
	if params.Persister == nil {
		return nil, errors.New("cart persister required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	timeout := params.PersistTimeout
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	s := &Store{
		persister: params.Persister,
		logg:      params.Logger,
		metrics:   params.Metrics,
		timeout:   timeout,
	}

	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	items, err := params.Persister.Load(loadCtx)
	if err != nil {
		s.markFailure(ctx, "load", err)
		s.unloaded.Store(true)
		return s, nil
	}
	s.items = normalize(items)
	if len(s.items) > 0 {
		s.logg.Info(s.logg.WithField(ctx, "line_items", len(s.items)), "restored persisted cart")
	}
	return s, nil
}

// normalize collapses duplicate identities and drops unusable lines from a
// persisted payload.
func normalize(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[Key]int, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			continue
		}
		key := item.Identity()
		if pos, ok := index[key]; ok {
			if sum, ok := addQuantity(out[pos].Quantity, item.Quantity); ok {
				out[pos].Quantity = sum
			} else {
				out[pos].Quantity = math.MaxInt
			}
			continue
		}
		index[key] = len(out)
		out = append(out, item.clone())
	}
	return out
}

func validateCandidate(item LineItem) error {
	switch {
	case item.ProductID == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	case item.Quantity < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	case item.UnitPrice.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	case item.FabricWeight != nil && *item.FabricWeight <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "fabric weight must be positive")
	}
	return nil
}

// addQuantity reports false when a+b does not fit in an int.
func addQuantity(a, b int) (int, bool) {
	if b > math.MaxInt-a {
		return 0, false
	}
	return a + b, true
}

// AddItem merges the candidate into the line with the same identity or
// appends a new line.
func (s *Store) AddItem(ctx context.Context, candidate Candidate) (Snapshot, error) {
	item := candidate.lineItem()
	if err := validateCandidate(item); err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	if pos := s.indexOf(item.Identity()); pos >= 0 {
		sum, ok := addQuantity(s.items[pos].Quantity, item.Quantity)
		if !ok {
			snap := newSnapshot(s.items)
			s.mu.Unlock()
			return snap, pkgerrors.New(pkgerrors.CodeValidation, "quantity is too large").
				WithDetails(map[string]any{"product_id": item.ProductID, "in_cart": snap.Items[pos].Quantity})
		}
		s.items[pos].Quantity = sum
	} else {
		s.items = append(s.items, item)
	}
	return s.commit(ctx), nil
}

// UpdateQuantity sets the quantity of an existing line exactly. A quantity of
// zero or less removes the line. Unknown identities are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, key Key, quantity int) Snapshot {
	s.mu.Lock()
	pos := s.indexOf(key)
	if pos < 0 {
		defer s.mu.Unlock()
		return newSnapshot(s.items)
	}
	if quantity <= 0 {
		s.items = append(s.items[:pos], s.items[pos+1:]...)
	} else {
		if s.items[pos].Quantity == quantity {
			defer s.mu.Unlock()
			return newSnapshot(s.items)
		}
		s.items[pos].Quantity = quantity
	}
	return s.commit(ctx)
}

// RemoveItem drops the line with the given identity if present.
func (s *Store) RemoveItem(ctx context.Context, key Key) Snapshot {
	return s.UpdateQuantity(ctx, key, 0)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) Snapshot {
	s.mu.Lock()
	if len(s.items) == 0 {
		defer s.mu.Unlock()
		return newSnapshot(nil)
	}
	s.items = nil
	return s.commit(ctx)
}

// RemoveOrdered takes the quantities in ordered out of the cart, matching
// lines by identity. Lines that reach zero are dropped; anything added or
// raised since ordered was read stays in the cart.
func (s *Store) RemoveOrdered(ctx context.Context, ordered []LineItem) Snapshot {
	s.mu.Lock()
	changed := false
	for _, item := range ordered {
		pos := s.indexOf(item.Identity())
		if pos < 0 || item.Quantity <= 0 {
			continue
		}
		changed = true
		if left := s.items[pos].Quantity - item.Quantity; left > 0 {
			s.items[pos].Quantity = left
			continue
		}
		s.items = append(s.items[:pos], s.items[pos+1:]...)
	}
	if !changed {
		defer s.mu.Unlock()
		return newSnapshot(s.items)
	}
	return s.commit(ctx)
}

// commit is called with mu held after a state change. It releases mu, then
// notifies observers and persists while holding seq.
func (s *Store) commit(ctx context.Context) Snapshot {
	snap := newSnapshot(s.items)
	observers := make([]Observer, len(s.observers))
	for i, entry := range s.observers {
		observers[i] = entry.fn
	}
	s.seq.Lock()
	s.mu.Unlock()
	defer s.seq.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	s.persist(ctx, snap.Items)
	return snap
}

func (s *Store) persist(ctx context.Context, items []LineItem) {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	var err error
	op := "save"
	if len(items) == 0 {
		op = "remove"
		err = s.persister.Remove(persistCtx)
	} else {
		err = s.persister.Save(persistCtx, items)
	}
	if err != nil {
		s.markFailure(ctx, op, err)
		return
	}
	s.unloaded.Store(false)
	if s.degraded.CompareAndSwap(true, false) {
		s.persistErr.Store(nil)
		s.metrics.SetDegraded(false)
		s.logg.Info(ctx, "cart persistence recovered")
	}
}

// markFailure records a persistence failure. Only the transition into
// degraded mode is logged as a warning.
func (s *Store) markFailure(ctx context.Context, op string, err error) {
	s.metrics.IncPersistenceFailure()
	msg := err.Error()
	s.persistErr.Store(&msg)
	fields := pkgerrors.Dump(err).Fields()
	fields["op"] = op
	logCtx := s.logg.WithFields(ctx, fields)
	if s.degraded.CompareAndSwap(false, true) {
		s.metrics.SetDegraded(true)
		s.logg.Warn(logCtx, "cart persistence failed; continuing in memory only")
		return
	}
	s.logg.Debug(logCtx, "cart persistence still failing")
}

func (s *Store) indexOf(key Key) int {
	for i, item := range s.items {
		if item.Identity() == key {
			return i
		}
	}
	return -1
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, entry := range s.observers {
				if entry.id == id {
					s.observers = append(s.observers[:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newSnapshot(s.items)
}

func (s *Store) Items() []LineItem {
	return s.Snapshot().Items
}

func (s *Store) TotalItems() int {
	return s.Snapshot().TotalItems
}

func (s *Store) TotalPrice() decimal.Decimal {
	return s.Snapshot().TotalPrice
}

// Resave retries durable persistence while the store is degraded. When the
// startup load failed it retries the load first; the loaded lines are adopted
// only if the cart is still empty, otherwise the in-memory cart wins.
func (s *Store) Resave(ctx context.Context) error {
	if !s.degraded.Load() {
		return nil
	}

	if s.unloaded.Load() {
		loadCtx, cancel := context.WithTimeout(ctx, s.timeout)
		items, err := s.persister.Load(loadCtx)
		cancel()
		if err != nil {
			s.markFailure(ctx, "load", err)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
		}
		s.unloaded.Store(false)

		s.mu.Lock()
		if len(s.items) == 0 && len(items) > 0 {
			s.items = normalize(items)
			s.logg.Info(s.logg.WithField(ctx, "line_items", len(s.items)), "restored persisted cart after recovery")
			s.commit(ctx)
			return s.persistenceError()
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	items := newSnapshot(s.items).Items
	s.seq.Lock()
	s.mu.Unlock()
	s.persist(ctx, items)
	s.seq.Unlock()
	return s.persistenceError()
}

func (s *Store) persistenceError() error {
	if !s.degraded.Load() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeDependency, "cart persistence still failing").
		WithDetails(map[string]any{"error": s.LastPersistenceError()})
}

// Degraded reports whether the last persistence attempt failed.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// LastPersistenceError returns the most recent persistence failure while degraded.
func (s *Store) LastPersistenceError() string {
	if msg := s.persistErr.Load(); msg != nil {
		return *msg
	}
	return ""
}
