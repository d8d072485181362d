package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
)

// Handle is one (table, view) subscription.
type Handle struct {
	manager *Manager
	view    ViewID
	table   enums.CatalogTable
	mask    enums.ChangeEventMask
	refetch RefetchFunc

	mu          sync.Mutex
	state       enums.SubscriptionState
	generation  uint64
	sub         Subscription
	lastEventAt time.Time
	inFlight    bool
	dirty       bool

	readyOnce sync.Once
	ready     chan struct{}
}

func (h *Handle) View() ViewID {
	return h.view
}

func (h *Handle) Table() enums.CatalogTable {
	return h.table
}

func (h *Handle) State() enums.SubscriptionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// LastEventAt is the receive time of the latest change event, zero if none.
func (h *Handle) LastEventAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastEventAt
}

// Ready is closed after the first refetch has been committed.
func (h *Handle) Ready() <-chan struct{} {
	return h.ready
}

// Close unmounts the view. See Manager.Unmount.
func (h *Handle) Close(ctx context.Context) error {
	return h.manager.close(ctx, h)
}

func (h *Handle) markReady() {
	h.readyOnce.Do(func() { close(h.ready) })
}

func (h *Handle) info() HandleInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HandleInfo{
		View:        h.view,
		Table:       h.table,
		State:       h.state,
		LastEventAt: h.lastEventAt,
	}
}

// HandleInfo is a point-in-time description of a handle.
type HandleInfo struct {
	View        ViewID                  `json:"view"`
	Table       enums.CatalogTable      `json:"table"`
	State       enums.SubscriptionState `json:"state"`
	LastEventAt time.Time               `json:"last_event_at"`
}
