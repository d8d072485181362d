package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	msgs []*pubsub.Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	p.msgs = append(p.msgs, msg)
	return fakeResult{err: p.err}
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

func TestNotifierPublishesAttributesOnly(t *testing.T) {
	pub := &fakePublisher{}
	notifier := newNotifier(pub)
	fixed := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	notifier.now = func() time.Time { return fixed }

	require.NoError(t, notifier.NotifyChange(context.Background(), enums.TableOrders, enums.ChangeInsert))
	require.Len(t, pub.msgs, 1)

	msg := pub.msgs[0]
	assert.Empty(t, msg.Data)
	assert.Equal(t, "orders", msg.Attributes[attrTable])
	assert.Equal(t, "INSERT", msg.Attributes[attrEventType])
	assert.Equal(t, "2026-01-05T12:00:00Z", msg.Attributes[attrOccurred])
	assert.NotEmpty(t, msg.Attributes[attrEventID])
}

func TestNotifierSurfacesPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("topic not found")}
	notifier := newNotifier(pub)

	err := notifier.NotifyChange(context.Background(), enums.TableOrders, enums.ChangeInsert)
	require.EqualError(t, err, "topic not found")

	err = notifier.NotifyChange(context.Background(), "inventory", enums.ChangeInsert)
	require.Error(t, err)
	assert.Len(t, pub.msgs, 1, "invalid table never reaches the topic")

	_, err = NewNotifier(nil)
	require.Error(t, err)
}

func TestMemoryFeedNotifyDeliversSynchronously(t *testing.T) {
	feed := NewMemoryFeed()
	ctx := context.Background()
	var rec eventRecorder

	sub, err := feed.Subscribe(ctx, enums.TableSignups, enums.MaskAll, rec.handle)
	require.NoError(t, err)
	require.NoError(t, feed.NotifyChange(ctx, enums.TableSignups, ""))
	require.Len(t, rec.snapshot(), 1)
	assert.NotEmpty(t, rec.snapshot()[0].MessageID)

	require.NoError(t, sub.Unsubscribe(ctx))
	require.NoError(t, feed.NotifyChange(ctx, enums.TableSignups, enums.ChangeInsert))
	assert.Len(t, rec.snapshot(), 1)
	assert.Zero(t, feed.Listeners())

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = feed.Subscribe(canceled, enums.TableSignups, enums.MaskAll, rec.handle)
	require.Error(t, err)
}
