package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/google/uuid"
)

// ChangeNotifier announces that a table changed.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, table enums.CatalogTable, eventType enums.ChangeEventType) error
}

// MemoryFeed is an in-process Feed and ChangeNotifier for single-instance
// deployments and tests. Delivery is synchronous.
type MemoryFeed struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]memoryListener
	now       func() time.Time
}

type memoryListener struct {
	table   enums.CatalogTable
	mask    enums.ChangeEventMask
	handler Handler
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{listeners: map[uint64]memoryListener{}, now: time.Now}
}

func (f *MemoryFeed) Subscribe(ctx context.Context, table enums.CatalogTable, mask enums.ChangeEventMask, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = memoryListener{table: table, mask: mask, handler: handler}
	return &memorySubscription{feed: f, id: id}, nil
}

// NotifyChange delivers an event to every matching listener before returning.
func (f *MemoryFeed) NotifyChange(ctx context.Context, table enums.CatalogTable, eventType enums.ChangeEventType) error {
	evt := ChangeEvent{
		Table:      table,
		Type:       eventType,
		MessageID:  uuid.NewString(),
		ReceivedAt: f.now(),
	}
	f.mu.Lock()
	var targets []Handler
	for _, l := range f.listeners {
		if l.table == table && (eventType == "" || l.mask.Matches(eventType)) {
			targets = append(targets, l.handler)
		}
	}
	f.mu.Unlock()

	for _, handler := range targets {
		handler(ctx, evt)
	}
	return nil
}

// Listeners reports the number of live subscriptions.
func (f *MemoryFeed) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

type memorySubscription struct {
	feed *MemoryFeed
	id   uint64
}

func (s *memorySubscription) Unsubscribe(context.Context) error {
	s.feed.mu.Lock()
	delete(s.feed.listeners, s.id)
	s.feed.mu.Unlock()
	return nil
}
