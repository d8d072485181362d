package realtime

import (
	"context"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/google/uuid"
)

const defaultPublishTimeout = 5 * time.Second

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// Notifier publishes payload-less change signals so other processes watching
// the table refetch.
type Notifier struct {
	pub     publisher
	timeout time.Duration
	now     func() time.Time
}

// NewNotifier wraps the change-topic publisher.
func NewNotifier(p *pubsub.Publisher) (*Notifier, error) {
	if p == nil {
		return nil, errors.New("change publisher required")
	}
	return newNotifier(&gcpPublisher{Publisher: p}), nil
}

func newNotifier(p publisher) *Notifier {
	return &Notifier{pub: p, timeout: defaultPublishTimeout, now: time.Now}
}

// NotifyChange publishes one change signal and waits for the server ack.
func (n *Notifier) NotifyChange(ctx context.Context, table enums.CatalogTable, eventType enums.ChangeEventType) error {
	if !table.IsValid() {
		return errors.New("unknown catalog table")
	}
	msg := &pubsub.Message{
		Attributes: map[string]string{
			attrTable:     string(table),
			attrEventType: string(eventType),
			attrEventID:   uuid.NewString(),
			attrOccurred:  n.now().UTC().Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	result := n.pub.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	_, err := result.Get(publishCtx)
	return err
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*pubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
