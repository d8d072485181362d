package realtime

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"go.uber.org/multierr"
)

const (
	defaultSubscribeTimeout = 10 * time.Second
	defaultRefetchTimeout   = 15 * time.Second
)

type ManagerParams struct {
	Feed             Feed
	Logger           *logger.Logger
	Metrics          *metrics.RealtimeMetrics
	Clock            func() time.Time
	SubscribeTimeout time.Duration
	RefetchTimeout   time.Duration
}

type slot struct {
	table enums.CatalogTable
	view  ViewID
}

// Manager owns every (table, view) subscription of the process and turns
// change events into view refetches.
type Manager struct {
	feed             Feed
	logg             *logger.Logger
	metrics          *metrics.RealtimeMetrics
	now              func() time.Time
	subscribeTimeout time.Duration
	refetchTimeout   time.Duration

	// baseCtx outlives individual mounts so an in-flight refetch can finish
	// after its view unmounts. It is canceled by Close.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	handles map[slot]*Handle
	closed  bool

	refetches sync.WaitGroup
}

func NewManager(params ManagerParams) (*Manager, error) {
	if params.Feed == nil {
		return nil, errors.New("change feed required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	subscribeTimeout := params.SubscribeTimeout
	if subscribeTimeout <= 0 {
		subscribeTimeout = defaultSubscribeTimeout
	}
	refetchTimeout := params.RefetchTimeout
	if refetchTimeout <= 0 {
		refetchTimeout = defaultRefetchTimeout
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		feed:             params.Feed,
		logg:             params.Logger,
		metrics:          params.Metrics,
		now:              clock,
		subscribeTimeout: subscribeTimeout,
		refetchTimeout:   refetchTimeout,
		baseCtx:          baseCtx,
		cancel:           cancel,
		handles:          map[slot]*Handle{},
	}, nil
}

// Mount subscribes view to table and schedules an initial refetch. A view may
// hold at most one live handle per table. A failed subscribe leaves nothing
// behind, so mounting again is the retry.
func (m *Manager) Mount(ctx context.Context, view ViewID, table enums.CatalogTable, mask enums.ChangeEventMask, refetch RefetchFunc) (*Handle, error) {
	if strings.TrimSpace(string(view)) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "view id is required")
	}
	if !table.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown catalog table").
			WithDetails(map[string]any{"table": table})
	}
	if refetch == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refetch func is required")
	}
	if mask == 0 {
		mask = enums.MaskAll
	}

	key := slot{table: table, view: view}
	h := &Handle{
		manager: m,
		view:    view,
		table:   table,
		mask:    mask,
		refetch: refetch,
		state:   enums.SubscriptionSubscribing,
		ready:   make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "realtime manager is closed")
	}
	if existing, ok := m.handles[key]; ok && existing.State().IsLive() {
		m.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "view already subscribed to table").
			WithDetails(map[string]any{"view": view, "table": table})
	}
	m.handles[key] = h
	m.mu.Unlock()

	logCtx := m.logg.WithViewID(m.logg.WithTable(ctx, string(table)), string(view))

	subCtx, cancel := context.WithTimeout(ctx, m.subscribeTimeout)
	sub, err := m.feed.Subscribe(subCtx, table, mask, h.onEvent)
	cancel()
	if err != nil {
		h.mu.Lock()
		h.state = enums.SubscriptionUnsubscribed
		h.generation++
		h.mu.Unlock()
		m.release(h)
		m.logg.Warn(m.logg.WithFields(logCtx, pkgerrors.Dump(err).Fields()), "subscribe failed; view will show stale data until remounted")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe to change feed")
	}

	h.mu.Lock()
	if h.state != enums.SubscriptionSubscribing {
		// Unmounted while the subscribe handshake was pending.
		h.mu.Unlock()
		if unsubErr := sub.Unsubscribe(ctx); unsubErr != nil {
			m.logg.Warn(m.logg.WithFields(logCtx, pkgerrors.Dump(unsubErr).Fields()), "failed to release subscription after early unmount")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "view unmounted while subscribing")
	}
	h.state = enums.SubscriptionSubscribed
	h.sub = sub
	h.mu.Unlock()

	m.metrics.IncActive(string(table))
	m.logg.Info(m.logg.WithField(logCtx, "mask", mask.String()), "view subscribed")
	if n, ok := sub.(LossNotifier); ok {
		n.OnLost(func(err error) { m.lost(h, sub, err) })
	}

	h.trigger()
	return h, nil
}

// Unmount tears down the handle for (view, table). It is a no-op when the
// view is not mounted.
func (m *Manager) Unmount(ctx context.Context, view ViewID, table enums.CatalogTable) error {
	m.mu.Lock()
	h := m.handles[slot{table: table, view: view}]
	m.mu.Unlock()
	if h == nil {
		return nil
	}
	return m.close(ctx, h)
}

// close moves the handle to Unsubscribed before releasing the remote
// subscription, so no refetch result is committed once it returns.
func (m *Manager) close(ctx context.Context, h *Handle) error {
	h.mu.Lock()
	if h.state == enums.SubscriptionUnsubscribed {
		h.mu.Unlock()
		return nil
	}
	wasSubscribed := h.state == enums.SubscriptionSubscribed
	h.state = enums.SubscriptionUnsubscribed
	h.generation++
	h.dirty = false
	sub := h.sub
	h.sub = nil
	h.mu.Unlock()

	m.release(h)
	if wasSubscribed {
		m.metrics.DecActive(string(h.table))
	}
	logCtx := m.logg.WithViewID(m.logg.WithTable(ctx, string(h.table)), string(h.view))
	if sub == nil {
		return nil
	}
	if err := sub.Unsubscribe(ctx); err != nil {
		m.logg.Warn(m.logg.WithFields(logCtx, pkgerrors.Dump(err).Fields()), "failed to release subscription")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unsubscribe from change feed")
	}
	m.logg.Info(logCtx, "view unsubscribed")
	return nil
}

// lost handles a subscription whose stream ended on its own. The handle goes
// to Unsubscribed and frees its slot so the next Mount subscribes again.
func (m *Manager) lost(h *Handle, sub Subscription, err error) {
	h.mu.Lock()
	if h.state != enums.SubscriptionSubscribed || h.sub != sub {
		h.mu.Unlock()
		return
	}
	h.state = enums.SubscriptionUnsubscribed
	h.generation++
	h.dirty = false
	h.sub = nil
	h.mu.Unlock()

	m.release(h)
	m.metrics.DecActive(string(h.table))
	logCtx := m.logg.WithViewID(m.logg.WithTable(m.baseCtx, string(h.table)), string(h.view))
	if err != nil {
		logCtx = m.logg.WithFields(logCtx, pkgerrors.Dump(err).Fields())
	}
	m.logg.Warn(logCtx, "change stream lost; view will show stale data until remounted")
}

func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := slot{table: h.table, view: h.view}
	if m.handles[key] == h {
		delete(m.handles, key)
	}
}

// Active lists the live handles ordered by table then view.
func (m *Manager) Active() []HandleInfo {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	out := make([]HandleInfo, 0, len(handles))
	for _, h := range handles {
		info := h.info()
		if info.State.IsLive() {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].View < out[j].View
	})
	return out
}

// Close unmounts every view and waits for in-flight refetches until ctx is done.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	var err error
	for _, h := range handles {
		err = multierr.Append(err, m.close(ctx, h))
	}

	done := make(chan struct{})
	go func() {
		m.refetches.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}
	m.cancel()
	return err
}

// onEvent runs on the feed's delivery goroutine.
func (h *Handle) onEvent(ctx context.Context, evt ChangeEvent) {
	m := h.manager
	h.mu.Lock()
	if h.state != enums.SubscriptionSubscribed {
		h.mu.Unlock()
		return
	}
	at := evt.ReceivedAt
	if at.IsZero() {
		at = m.now()
	}
	h.lastEventAt = at
	h.mu.Unlock()

	m.metrics.IncEvent(string(h.table))
	m.logg.Debug(m.logg.WithFields(ctx, map[string]any{
		"table":      h.table,
		"view_id":    h.view,
		"event_type": evt.Type,
		"message_id": evt.MessageID,
	}), "change event received")
	h.trigger()
}

// trigger starts a refetch, or marks the handle dirty when one is already
// running so exactly one follow-up refetch happens afterwards.
func (h *Handle) trigger() {
	h.mu.Lock()
	if h.state != enums.SubscriptionSubscribed {
		h.mu.Unlock()
		return
	}
	if h.inFlight {
		h.dirty = true
		h.mu.Unlock()
		return
	}
	h.inFlight = true
	gen := h.generation
	h.mu.Unlock()

	h.manager.refetches.Add(1)
	go h.runRefetch(gen)
}

func (h *Handle) runRefetch(gen uint64) {
	m := h.manager
	defer m.refetches.Done()

	logCtx := m.logg.WithViewID(m.logg.WithTable(m.baseCtx, string(h.table)), string(h.view))
	for {
		ctx, cancel := context.WithTimeout(m.baseCtx, m.refetchTimeout)
		start := m.now()
		commit, err := h.refetch(ctx)
		cancel()
		elapsed := m.now().Sub(start)

		h.mu.Lock()
		live := h.state == enums.SubscriptionSubscribed && h.generation == gen
		var outcome string
		switch {
		case err != nil:
			outcome = metrics.OutcomeFailure
		case !live:
			outcome = metrics.OutcomeDiscarded
		default:
			outcome = metrics.OutcomeSuccess
			if commit != nil {
				commit()
			}
		}
		again := live && h.dirty
		h.dirty = false
		if !again {
			h.inFlight = false
		}
		h.mu.Unlock()

		m.metrics.ObserveRefetch(string(h.table), outcome, elapsed)
		switch outcome {
		case metrics.OutcomeFailure:
			m.logg.Warn(m.logg.WithFields(logCtx, pkgerrors.Dump(err).Fields()), "refetch failed; keeping previous rows")
		case metrics.OutcomeDiscarded:
			m.logg.Debug(logCtx, "discarding refetch result for unmounted view")
		default:
			h.markReady()
		}

		if !again {
			return
		}
	}
}
