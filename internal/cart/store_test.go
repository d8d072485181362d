package cart

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newTestStore(t *testing.T, persister Persister) *Store {
	t.Helper()
	if persister == nil {
		persister = NewMemoryPersister()
	}
	store, err := NewStore(context.Background(), StoreParams{
		Persister: persister,
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	return store
}

func TestAddItemMergesIdenticalIdentity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	_, err := store.AddItem(ctx, Candidate{ProductID: "P1", Size: "M", Quantity: 1, UnitPrice: price(100)})
	require.NoError(t, err)
	snap, err := store.AddItem(ctx, Candidate{ProductID: "P1", Size: "M", Quantity: 2, UnitPrice: price(100)})
	require.NoError(t, err)

	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)
	assert.Equal(t, 3, snap.TotalItems)
	assert.True(t, snap.TotalPrice.Equal(price(300)), "total %s", snap.TotalPrice)
}

func TestAddItemSumsAnySequenceOfIdenticalAdds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	quantities := []int{1, 4, 0, 2, 7, 3}
	want := 0
	for _, qty := range quantities {
		_, err := store.AddItem(ctx, Candidate{ProductID: "P9", Size: "XL", FabricWeight: intPtr(220), Quantity: qty, UnitPrice: price(10)})
		require.NoError(t, err)
		if qty == 0 {
			qty = 1
		}
		want += qty
	}

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, want, items[0].Quantity)
}

func TestDistinctSizesAreDistinctLines(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	_, err := store.AddItem(ctx, Candidate{ProductID: "P1", Size: "M", Quantity: 2, UnitPrice: price(50)})
	require.NoError(t, err)
	snap, err := store.AddItem(ctx, Candidate{ProductID: "P1", Size: "L", Quantity: 1, UnitPrice: price(50)})
	require.NoError(t, err)

	assert.Len(t, snap.Items, 2)
	assert.Equal(t, 3, snap.TotalItems)
	assert.True(t, snap.TotalPrice.Equal(price(150)))
}

func TestFabricWeightParticipatesInIdentity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	for _, weight := range []*int{nil, intPtr(180), intPtr(200), intPtr(180), nil} {
		_, err := store.AddItem(ctx, Candidate{ProductID: "P1", Size: "M", FabricWeight: weight, UnitPrice: price(10)})
		require.NoError(t, err)
	}

	snap := store.Snapshot()
	require.Len(t, snap.Items, 3)

	absent, ok := snap.Find(NewKey("P1", "M", nil))
	require.True(t, ok)
	assert.Equal(t, 2, absent.Quantity)
	assert.Nil(t, absent.FabricWeight)

	heavy, ok := snap.Find(NewKey("P1", "M", intPtr(180)))
	require.True(t, ok)
	assert.Equal(t, 2, heavy.Quantity)

	assert.NotEqual(t, NewKey("P1", "M", nil), NewKey("P1", "M", intPtr(0)))
}

func TestUpdateQuantitySetsExactly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)
	_, err := store.AddItem(ctx, Candidate{ProductID: "P1", Size: "M", Quantity: 2, UnitPrice: price(25)})
	require.NoError(t, err)

	snap := store.UpdateQuantity(ctx, NewKey("P1", "M", nil), 5)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 5, snap.Items[0].Quantity)
	assert.True(t, snap.TotalPrice.Equal(price(125)))
}

func TestUpdateQuantityZeroEqualsRemove(t *testing.T) {
	ctx := context.Background()
	seed := func(s *Store) {
		_, err := s.AddItem(ctx, Candidate{ProductID: "P1", Size: "M", Quantity: 2, UnitPrice: price(50)})
		require.NoError(t, err)
		_, err = s.AddItem(ctx, Candidate{ProductID: "P2", Size: "S", FabricWeight: intPtr(160), UnitPrice: price(80)})
		require.NoError(t, err)
	}

	updated := newTestStore(t, nil)
	seed(updated)
	removed := newTestStore(t, nil)
	seed(removed)

	key := NewKey("P2", "S", intPtr(160))
	assert.Equal(t, removed.RemoveItem(ctx, key), updated.UpdateQuantity(ctx, key, 0))

	negative := newTestStore(t, nil)
	seed(negative)
	assert.Equal(t, removed.Snapshot(), negative.UpdateQuantity(ctx, key, -3))
}

func TestUnknownIdentityIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)
	_, err := store.AddItem(ctx, Candidate{ProductID: "P1", Size: "M", UnitPrice: price(50)})
	require.NoError(t, err)

	notified := 0
	store.Subscribe(func(Snapshot) { notified++ })

	before := store.Snapshot()
	assert.Equal(t, before, store.UpdateQuantity(ctx, NewKey("P1", "L", nil), 4))
	assert.Equal(t, before, store.RemoveItem(ctx, NewKey("P1", "M", intPtr(180))))
	assert.Equal(t, before, store.RemoveItem(ctx, NewKey("missing", "", nil)))
	assert.Zero(t, notified)
}

func TestClearResetsTotals(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)
	_, err := store.AddItem(ctx, Candidate{ProductID: "P1", Size: "M", Quantity: 3, UnitPrice: price(99)})
	require.NoError(t, err)

	store.Clear(ctx)
	snap := store.Snapshot()
	assert.Empty(t, snap.Items)
	assert.NotNil(t, snap.Items)
	assert.Equal(t, 0, snap.TotalItems)
	assert.True(t, snap.TotalPrice.IsZero())
}

func TestRemoveOrderedSubtractsOnlyWhatWasOrdered(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	_, err := store.AddItem(ctx, Candidate{ProductID: "P1", Size: "M", Quantity: 2, UnitPrice: price(50)})
	require.NoError(t, err)
	_, err = store.AddItem(ctx, Candidate{ProductID: "P2", Quantity: 1, UnitPrice: price(300)})
	require.NoError(t, err)
	ordered := store.Snapshot().Items

	_, err = store.AddItem(ctx, Candidate{ProductID: "P1", Size: "M", Quantity: 3, UnitPrice: price(50)})
	require.NoError(t, err)
	_, err = store.AddItem(ctx, Candidate{ProductID: "P9", Quantity: 1, UnitPrice: price(80)})
	require.NoError(t, err)
	store.RemoveItem(ctx, NewKey("P2", "", nil))

	snap := store.RemoveOrdered(ctx, ordered)
	require.Len(t, snap.Items, 2)
	shirt, ok := snap.Find(NewKey("P1", "M", nil))
	require.True(t, ok)
	assert.Equal(t, 3, shirt.Quantity)
	_, ok = snap.Find(NewKey("P9", "", nil))
	assert.True(t, ok)
	assert.Equal(t, 4, snap.TotalItems)
	assert.True(t, snap.TotalPrice.Equal(price(230)), "total %s", snap.TotalPrice)

	snap = store.RemoveOrdered(ctx, snap.Items)
	assert.True(t, snap.IsEmpty())
}

func TestAddItemRejectsQuantityOverflow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	_, err := store.AddItem(ctx, Candidate{ProductID: "P1", Quantity: math.MaxInt - 1, UnitPrice: price(1)})
	require.NoError(t, err)
	snap, err := store.AddItem(ctx, Candidate{ProductID: "P1", Quantity: 5, UnitPrice: price(1)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Len(t, snap.Items, 1)
	assert.Equal(t, math.MaxInt-1, snap.Items[0].Quantity)

	restored := normalize([]LineItem{
		{ProductID: "P1", Quantity: math.MaxInt, UnitPrice: price(1)},
		{ProductID: "P1", Quantity: 7, UnitPrice: price(1)},
	})
	require.Len(t, restored, 1)
	assert.Equal(t, math.MaxInt, restored[0].Quantity)
}

func TestTotalPriceTracksEveryMutation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	check := func() {
		t.Helper()
		want := decimal.Zero
		for _, item := range store.Items() {
			want = want.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		assert.True(t, store.TotalPrice().Equal(want), "total %s want %s", store.TotalPrice(), want)
	}

	_, err := store.AddItem(ctx, Candidate{ProductID: "A", UnitPrice: decimal.RequireFromString("19.99"), Quantity: 3})
	require.NoError(t, err)
	check()
	_, err = store.AddItem(ctx, Candidate{ProductID: "B", Size: "L", UnitPrice: decimal.RequireFromString("5.25")})
	require.NoError(t, err)
	check()
	store.UpdateQuantity(ctx, NewKey("A", "", nil), 1)
	check()
	store.RemoveItem(ctx, NewKey("B", "L", nil))
	check()
	assert.True(t, store.TotalPrice().Equal(decimal.RequireFromString("19.99")))
}

func TestAddItemValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	cases := []Candidate{
		{ProductID: "", UnitPrice: price(1)},
		{ProductID: "  ", UnitPrice: price(1)},
		{ProductID: "P1", UnitPrice: price(-1)},
		{ProductID: "P1", UnitPrice: price(1), Quantity: -2},
		{ProductID: "P1", UnitPrice: price(1), FabricWeight: intPtr(0)},
	}
	for _, candidate := range cases {
		_, err := store.AddItem(ctx, candidate)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "unexpected error %v", err)
	}
	assert.Empty(t, store.Items())
}

func TestSnapshotIsIsolatedFromStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)
	snap, err := store.AddItem(ctx, Candidate{ProductID: "P1", FabricWeight: intPtr(180), UnitPrice: price(10)})
	require.NoError(t, err)

	snap.Items[0].Quantity = 99
	*snap.Items[0].FabricWeight = 1

	fresh := store.Snapshot()
	assert.Equal(t, 1, fresh.Items[0].Quantity)
	assert.Equal(t, 180, *fresh.Items[0].FabricWeight)
}

func TestObserversRunSynchronouslyInOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	var seen []int
	var fromSecond []int
	unsubscribe := store.Subscribe(func(s Snapshot) { seen = append(seen, s.TotalItems) })
	store.Subscribe(func(s Snapshot) {
		// Reads from inside an observer see the committed state.
		fromSecond = append(fromSecond, store.TotalItems())
	})

	_, err := store.AddItem(ctx, Candidate{ProductID: "P1", UnitPrice: price(10)})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, seen, "observer must run before AddItem returns")

	_, err = store.AddItem(ctx, Candidate{ProductID: "P1", Quantity: 2, UnitPrice: price(10)})
	require.NoError(t, err)
	store.UpdateQuantity(ctx, NewKey("P1", "", nil), 7)
	store.Clear(ctx)

	assert.Equal(t, []int{1, 3, 7, 0}, seen)
	assert.Equal(t, seen, fromSecond)

	unsubscribe()
	unsubscribe()
	_, err = store.AddItem(ctx, Candidate{ProductID: "P2", UnitPrice: price(10)})
	require.NoError(t, err)
	assert.Len(t, seen, 4)
	assert.Len(t, fromSecond, 5)
}

func TestConcurrentAddsAreSerialized(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	var notifications int
	store.Subscribe(func(Snapshot) { notifications++ })

	const workers = 16
	const perWorker = 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, _ = store.AddItem(ctx, Candidate{ProductID: "P1", Size: "M", UnitPrice: price(1)})
			}
		}()
	}
	wg.Wait()

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, workers*perWorker, items[0].Quantity)
	assert.Equal(t, workers*perWorker, notifications)
}

func TestCartSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()

	first := newTestStore(t, persister)
	_, err := first.AddItem(ctx, Candidate{ProductID: "P1", Name: "Shirt", Size: "M", FabricWeight: intPtr(180), Quantity: 2, UnitPrice: price(100)})
	require.NoError(t, err)

	second := newTestStore(t, persister)
	snap := second.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Shirt", snap.Items[0].Name)
	assert.Equal(t, 180, *snap.Items[0].FabricWeight)
	assert.True(t, snap.TotalPrice.Equal(price(200)))

	second.Clear(ctx)
	third := newTestStore(t, persister)
	assert.Empty(t, third.Items())
}

func TestRestoreNormalizesPersistedDuplicates(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	require.NoError(t, persister.Save(ctx, []LineItem{
		{ProductID: "P1", Size: "M", Quantity: 1, UnitPrice: price(10)},
		{ProductID: "P1", Size: "M", Quantity: 2, UnitPrice: price(10)},
		{ProductID: "P2", Quantity: 0, UnitPrice: price(10)},
		{ProductID: "", Quantity: 1, UnitPrice: price(10)},
	}))

	store := newTestStore(t, persister)
	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

type flakyPersister struct {
	mu      sync.Mutex
	failing bool
	saves   int
	loadErr error
}

func (p *flakyPersister) Load(context.Context) ([]LineItem, error) {
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return []LineItem{}, nil
}

func (p *flakyPersister) Save(context.Context, []LineItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.failing {
		return errors.New("storage quota exceeded")
	}
	return nil
}

func (p *flakyPersister) Remove(ctx context.Context) error {
	return p.Save(ctx, nil)
}

func (p *flakyPersister) setFailing(v bool) {
	p.mu.Lock()
	p.failing = v
	p.mu.Unlock()
}

func TestPersistenceFailureDegradesSilently(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: &buf})
	persister := &flakyPersister{failing: true}
	store, err := NewStore(ctx, StoreParams{Persister: persister, Logger: logg})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := store.AddItem(ctx, Candidate{ProductID: "P1", UnitPrice: price(10)})
		require.NoError(t, err, "persistence failures must not surface to callers")
	}
	assert.True(t, store.Degraded())
	assert.Contains(t, store.LastPersistenceError(), "quota")
	assert.Equal(t, 3, store.TotalItems(), "cart keeps working in memory")
	assert.Equal(t, 1, strings.Count(buf.String(), "continuing in memory only"))

	persister.setFailing(false)
	_, err = store.AddItem(ctx, Candidate{ProductID: "P1", UnitPrice: price(10)})
	require.NoError(t, err)
	assert.False(t, store.Degraded())
	assert.Empty(t, store.LastPersistenceError())
	assert.Contains(t, buf.String(), "cart persistence recovered")
	assert.Equal(t, 4, persister.saves)
}

func TestLoadFailureStartsEmptyAndDegraded(t *testing.T) {
	store, err := NewStore(context.Background(), StoreParams{
		Persister: &flakyPersister{loadErr: errors.New("corrupt payload")},
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	assert.True(t, store.Degraded())
	assert.Empty(t, store.Items())
}

func TestNewStoreRequiresDependencies(t *testing.T) {
	_, err := NewStore(context.Background(), StoreParams{Logger: logger.Nop()})
	require.Error(t, err)
	_, err = NewStore(context.Background(), StoreParams{Persister: NewMemoryPersister()})
	require.Error(t, err)
}

func TestResaveRecoversDegradedStore(t *testing.T) {
	ctx := context.Background()
	persister := &flakyPersister{failing: true}
	store := newTestStore(t, persister)

	_, err := store.AddItem(ctx, Candidate{ProductID: "P1", UnitPrice: price(10)})
	require.NoError(t, err)
	require.True(t, store.Degraded())

	err = store.Resave(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	persister.setFailing(false)
	require.NoError(t, store.Resave(ctx))
	assert.False(t, store.Degraded())
	assert.Equal(t, 3, persister.saves)

	require.NoError(t, store.Resave(ctx), "healthy store is a no-op")
	assert.Equal(t, 3, persister.saves)
}

// reloadingPersister fails its first load and then serves the memory payload.
type reloadingPersister struct {
	*MemoryPersister
	loads int
}

func (p *reloadingPersister) Load(ctx context.Context) ([]LineItem, error) {
	p.loads++
	if p.loads == 1 {
		return nil, errors.New("connection reset")
	}
	return p.MemoryPersister.Load(ctx)
}

func TestResaveAdoptsPersistedCartAfterFailedLoad(t *testing.T) {
	ctx := context.Background()
	persister := &reloadingPersister{MemoryPersister: NewMemoryPersister()}
	require.NoError(t, persister.MemoryPersister.Save(ctx, []LineItem{
		{ProductID: "P1", Size: "M", Quantity: 2, UnitPrice: price(50)},
	}))

	store := newTestStore(t, persister)
	require.True(t, store.Degraded())
	require.Empty(t, store.Items())

	var notified []int
	store.Subscribe(func(s Snapshot) { notified = append(notified, s.TotalItems) })

	require.NoError(t, store.Resave(ctx))
	assert.False(t, store.Degraded())
	assert.Equal(t, 2, store.TotalItems())
	assert.Equal(t, []int{2}, notified)
}

func TestResaveKeepsInMemoryCartOverReloadedOne(t *testing.T) {
	ctx := context.Background()
	persister := &reloadingPersister{MemoryPersister: NewMemoryPersister()}
	require.NoError(t, persister.MemoryPersister.Save(ctx, []LineItem{
		{ProductID: "OLD", Quantity: 5, UnitPrice: price(1)},
	}))

	store := newTestStore(t, persister)
	_, err := store.AddItem(ctx, Candidate{ProductID: "NEW", UnitPrice: price(1)})
	require.NoError(t, err)
	// The add above already saved successfully, which cleared degraded mode.
	require.False(t, store.Degraded())

	require.NoError(t, store.Resave(ctx))
	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "NEW", items[0].ProductID)

	reloaded, err := persister.MemoryPersister.Load(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Equal(t, "NEW", reloaded[0].ProductID)
}
