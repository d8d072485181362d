package realtime

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
)

// ChangeEvent signals that rows of a table may have changed. It carries no
// row data; Type is empty when the producer did not say.
type ChangeEvent struct {
	Table      enums.CatalogTable
	Type       enums.ChangeEventType
	MessageID  string
	ReceivedAt time.Time
}

// Handler receives change events. It must not block.
type Handler func(ctx context.Context, evt ChangeEvent)

// Subscription is a live registration on a Feed.
type Subscription interface {
	Unsubscribe(ctx context.Context) error
}

// LossNotifier is implemented by subscriptions whose remote stream can end
// without being unsubscribed. OnLost runs fn once when that happens, or right
// away if it already has.
type LossNotifier interface {
	OnLost(fn func(err error))
}

// Feed is the remote change-notification primitive. Subscribe returns once
// the remote side has acknowledged the subscription.
type Feed interface {
	Subscribe(ctx context.Context, table enums.CatalogTable, mask enums.ChangeEventMask, handler Handler) (Subscription, error)
}

// RefetchFunc reloads a view's data. On success it returns a commit function
// that installs the fetched rows; the manager calls commit only if the view
// is still mounted.
type RefetchFunc func(ctx context.Context) (commit func(), err error)

// ViewID names a mounted view.
type ViewID string
