package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	pkgpubsub "github.com/angelmondragon/storefront/pkg/pubsub"
)

const (
	attrTable     = "table"
	attrEventType = "event_type"
	attrEventID   = "event_id"
	attrOccurred  = "occurred_at"
)

// Receiver is the streaming-pull surface of a Pub/Sub subscriber.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// SubscriptionSource resolves the Pub/Sub subscription of each catalog table.
type SubscriptionSource interface {
	EnsureSubscription(ctx context.Context, table enums.CatalogTable) error
	Receiver(table enums.CatalogTable) Receiver
}

type clientSource struct {
	client *pkgpubsub.Client
}

// NewClientSource adapts the shared Pub/Sub client.
func NewClientSource(client *pkgpubsub.Client) SubscriptionSource {
	return &clientSource{client: client}
}

func (s *clientSource) EnsureSubscription(ctx context.Context, table enums.CatalogTable) error {
	return s.client.EnsureSubscription(ctx, table)
}

func (s *clientSource) Receiver(table enums.CatalogTable) Receiver {
	sub := s.client.Subscriber(table)
	if sub == nil {
		return nil
	}
	return sub
}

// PubSubFeed implements Feed with one streaming pull per table. Views that
// watch the same table share the stream; a Pub/Sub subscription load-balances
// between concurrent receivers, so it must never be pulled twice.
type PubSubFeed struct {
	source SubscriptionSource
	logg   *logger.Logger
	now    func() time.Time

	mu      sync.Mutex
	streams map[enums.CatalogTable]*stream
	nextID  uint64
}

type stream struct {
	table     enums.CatalogTable
	cancel    context.CancelFunc
	done      chan struct{}
	listeners map[uint64]*listener

	// lost is set, with err, when Receive ended on its own.
	lost bool
	err  error
}

type listener struct {
	mask    enums.ChangeEventMask
	handler Handler
	onLost  func(error)
}

func NewPubSubFeed(source SubscriptionSource, logg *logger.Logger) (*PubSubFeed, error) {
	if source == nil {
		return nil, errors.New("subscription source required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &PubSubFeed{
		source:  source,
		logg:    logg,
		now:     time.Now,
		streams: map[enums.CatalogTable]*stream{},
	}, nil
}

// Subscribe treats a successful subscription existence check as the remote
// acknowledgment.
func (f *PubSubFeed) Subscribe(ctx context.Context, table enums.CatalogTable, mask enums.ChangeEventMask, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("handler required")
	}
	if err := f.source.EnsureSubscription(ctx, table); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.streams[table]
	if !ok {
		recv := f.source.Receiver(table)
		if recv == nil {
			return nil, fmt.Errorf("no subscriber for table %s", table)
		}
		streamCtx, cancel := context.WithCancel(context.Background())
		st = &stream{
			table:     table,
			cancel:    cancel,
			done:      make(chan struct{}),
			listeners: map[uint64]*listener{},
		}
		f.streams[table] = st
		go f.run(streamCtx, st, recv)
	}
	f.nextID++
	id := f.nextID
	st.listeners[id] = &listener{mask: mask, handler: handler}
	return &pubsubSubscription{feed: f, stream: st, id: id}, nil
}

func (f *PubSubFeed) run(ctx context.Context, st *stream, recv Receiver) {
	defer close(st.done)
	logCtx := f.logg.WithTable(ctx, string(st.table))
	f.logg.Info(logCtx, "change stream started")

	err := recv.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		f.dispatch(msgCtx, st, msg)
		// A change signal is idempotent; redelivery would only cause another refetch.
		msg.Ack()
	})
	if ctx.Err() != nil {
		f.logg.Info(logCtx, "change stream stopped")
		return
	}
	if err == nil {
		err = errors.New("receive returned without cancellation")
	}
	f.logg.Error(f.logg.WithFields(logCtx, pkgerrors.Dump(err).Fields()), "change stream lost", err)
	f.lose(st, err)
}

// lose detaches a dead stream so the next Subscribe starts a fresh pull, and
// tells every listener registered for loss.
func (f *PubSubFeed) lose(st *stream, err error) {
	f.mu.Lock()
	if f.streams[st.table] == st {
		delete(f.streams, st.table)
	}
	st.lost = true
	st.err = err
	var notify []func(error)
	for _, l := range st.listeners {
		if l.onLost != nil {
			notify = append(notify, l.onLost)
			l.onLost = nil
		}
	}
	f.mu.Unlock()

	for _, fn := range notify {
		fn(err)
	}
}

// dispatch fans one message out to the listeners of its stream.
func (f *PubSubFeed) dispatch(ctx context.Context, st *stream, msg *pubsub.Message) {
	evt, ok := f.parse(ctx, st.table, msg)
	if !ok {
		return
	}

	f.mu.Lock()
	targets := make([]Handler, 0, len(st.listeners))
	for _, l := range st.listeners {
		if evt.Type == "" || l.mask.Matches(evt.Type) {
			targets = append(targets, l.handler)
		}
	}
	f.mu.Unlock()

	for _, handler := range targets {
		handler(ctx, evt)
	}
}

func (f *PubSubFeed) parse(ctx context.Context, table enums.CatalogTable, msg *pubsub.Message) (ChangeEvent, bool) {
	evt := ChangeEvent{
		Table:      table,
		MessageID:  msg.ID,
		ReceivedAt: f.now(),
	}
	fields := map[string]any{"message_id": msg.ID, "table": table}

	if raw := msg.Attributes[attrTable]; raw != "" && raw != string(table) {
		fields["message_table"] = raw
		f.logg.Warn(f.logg.WithFields(ctx, fields), "skipping change event for another table")
		return evt, false
	}
	if raw := msg.Attributes[attrEventType]; raw != "" {
		eventType, err := enums.ParseChangeEventType(raw)
		if err != nil {
			fields["event_type"] = raw
			f.logg.Warn(f.logg.WithFields(ctx, fields), "skipping change event with unknown type")
			return evt, false
		}
		evt.Type = eventType
	}
	return evt, true
}

func (f *PubSubFeed) unsubscribe(ctx context.Context, st *stream, id uint64) error {
	f.mu.Lock()
	delete(st.listeners, id)
	if len(st.listeners) > 0 || st.lost {
		f.mu.Unlock()
		return nil
	}
	if f.streams[st.table] == st {
		delete(f.streams, st.table)
	}
	f.mu.Unlock()

	st.cancel()
	select {
	case <-st.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s stream shutdown: %w", st.table, ctx.Err())
	}
}

type pubsubSubscription struct {
	feed   *PubSubFeed
	stream *stream
	id     uint64
	once   sync.Once
	err    error
}

func (s *pubsubSubscription) Unsubscribe(ctx context.Context) error {
	s.once.Do(func() {
		s.err = s.feed.unsubscribe(ctx, s.stream, s.id)
	})
	return s.err
}

func (s *pubsubSubscription) OnLost(fn func(err error)) {
	f := s.feed
	f.mu.Lock()
	if s.stream.lost {
		err := s.stream.err
		f.mu.Unlock()
		fn(err)
		return
	}
	if l, ok := s.stream.listeners[s.id]; ok {
		l.onLost = fn
	}
	f.mu.Unlock()
}
