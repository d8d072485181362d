package cart

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeKV) CartKey(namespace string) string {
	return "sf:cart:" + namespace
}

func TestRedisPersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	persister, err := NewRedisPersister(kv, "storefront-cart", 24*time.Hour)
	require.NoError(t, err)

	items, err := persister.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "missing key loads as an empty cart")

	weight := 200
	require.NoError(t, persister.Save(ctx, []LineItem{
		{ProductID: "P1", Size: "M", FabricWeight: &weight, Quantity: 2, UnitPrice: price(100)},
		{ProductID: "P2", Quantity: 1, UnitPrice: price(40)},
	}))
	assert.Contains(t, kv.data, "sf:cart:storefront-cart")
	assert.Equal(t, 24*time.Hour, kv.ttls["sf:cart:storefront-cart"])
	assert.Contains(t, kv.data["sf:cart:storefront-cart"], `"fabric_weight":null`)

	items, err = persister.Load(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 200, *items[0].FabricWeight)
	assert.Nil(t, items[1].FabricWeight)
	assert.True(t, items[0].UnitPrice.Equal(price(100)))

	require.NoError(t, persister.Remove(ctx))
	items, err = persister.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRedisPersisterErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewRedisPersister(nil, "ns", 0)
	require.Error(t, err)
	_, err = NewRedisPersister(newFakeKV(), " ", 0)
	require.Error(t, err)

	kv := newFakeKV()
	persister, err := NewRedisPersister(kv, "ns", 0)
	require.NoError(t, err)

	kv.getErr = errors.New("connection refused")
	_, err = persister.Load(ctx)
	require.ErrorContains(t, err, "connection refused")

	kv.getErr = nil
	kv.data["sf:cart:ns"] = "not-json"
	_, err = persister.Load(ctx)
	require.Error(t, err)

	kv.data["sf:cart:ns"] = `{"version":7,"items":[]}`
	_, err = persister.Load(ctx)
	require.ErrorContains(t, err, "version")

	kv.setErr = errors.New("READONLY")
	require.Error(t, persister.Save(ctx, []LineItem{{ProductID: "P1", Quantity: 1}}))
}

func TestStoreOverRedisPersisterDegradesAndRecovers(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	persister, err := NewRedisPersister(kv, "ns", time.Hour)
	require.NoError(t, err)
	store := newTestStore(t, persister)

	kv.setErr = errors.New("redis down")
	_, err = store.AddItem(ctx, Candidate{ProductID: "P1", UnitPrice: price(5)})
	require.NoError(t, err)
	assert.True(t, store.Degraded())

	kv.setErr = nil
	_, err = store.AddItem(ctx, Candidate{ProductID: "P1", UnitPrice: price(5)})
	require.NoError(t, err)
	assert.False(t, store.Degraded())

	restored := newTestStore(t, persister)
	assert.Equal(t, 2, restored.TotalItems())
}
