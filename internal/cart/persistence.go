package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/redis"
)

const persistedVersion = 1

// Persister is the durable key/value store behind the cart. Load returns an
// empty slice and no error when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) ([]LineItem, error)
	Save(ctx context.Context, items []LineItem) error
	Remove(ctx context.Context) error
}

type persistedCart struct {
	Version int        `json:"version"`
	Items   []LineItem `json:"items"`
	SavedAt time.Time  `json:"saved_at"`
}

func encodeCart(items []LineItem, now time.Time) ([]byte, error) {
	return json.Marshal(persistedCart{
		Version: persistedVersion,
		Items:   items,
		SavedAt: now.UTC(),
	})
}

func decodeCart(raw []byte) ([]LineItem, error) {
	var payload persistedCart
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode persisted cart: %w", err)
	}
	if payload.Version != persistedVersion {
		return nil, fmt.Errorf("unsupported persisted cart version %d", payload.Version)
	}
	return payload.Items, nil
}

// RedisPersister keeps the cart as one JSON document under a fixed namespace.
type RedisPersister struct {
	kv  redis.KV
	key string
	ttl time.Duration
	now func() time.Time
}

func NewRedisPersister(kv redis.KV, namespace string, ttl time.Duration) (*RedisPersister, error) {
	if kv == nil {
		return nil, errors.New("redis kv required")
	}
	if strings.TrimSpace(namespace) == "" {
		return nil, errors.New("cart namespace required")
	}
	return &RedisPersister{
		kv:  kv,
		key: kv.CartKey(namespace),
		ttl: ttl,
		now: time.Now,
	}, nil
}

func (p *RedisPersister) Load(ctx context.Context) ([]LineItem, error) {
	raw, err := p.kv.Get(ctx, p.key)
	if err != nil {
		if redis.IsNil(err) {
			return []LineItem{}, nil
		}
		return nil, fmt.Errorf("load cart %s: %w", p.key, err)
	}
	return decodeCart([]byte(raw))
}

func (p *RedisPersister) Save(ctx context.Context, items []LineItem) error {
	buf, err := encodeCart(items, p.now())
	if err != nil {
		return err
	}
	if err := p.kv.Set(ctx, p.key, buf, p.ttl); err != nil {
		return fmt.Errorf("save cart %s: %w", p.key, err)
	}
	return nil
}

func (p *RedisPersister) Remove(ctx context.Context) error {
	if err := p.kv.Del(ctx, p.key); err != nil {
		return fmt.Errorf("remove cart %s: %w", p.key, err)
	}
	return nil
}

// MemoryPersister keeps the encoded cart in process memory.
type MemoryPersister struct {
	mu  sync.Mutex
	raw []byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (p *MemoryPersister) Load(context.Context) ([]LineItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.raw == nil {
		return []LineItem{}, nil
	}
	return decodeCart(p.raw)
}

func (p *MemoryPersister) Save(_ context.Context, items []LineItem) error {
	buf, err := encodeCart(items, time.Now())
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.raw = buf
	p.mu.Unlock()
	return nil
}

func (p *MemoryPersister) Remove(context.Context) error {
	p.mu.Lock()
	p.raw = nil
	p.mu.Unlock()
	return nil
}
