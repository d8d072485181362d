package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscriptions   = errors.New("no pubsub subscriptions configured")
	errNotConnected      = errors.New("pubsub client not initialized")

	// ErrSubscriptionNotFound means the configured subscription does not exist remotely.
	ErrSubscriptionNotFound = errors.New("subscription does not exist")
	// ErrSubscriptionNotConfigured means no subscription name is configured for a table.
	ErrSubscriptionNotConfigured = errors.New("subscription not configured")
)

// Client holds the Pub/Sub v2 connection for catalog change feeds. A
// subscription confirmed to exist is remembered for the life of the client.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig

	// lookup fetches a subscription by full resource name.
	lookup   func(ctx context.Context, resource string) error
	verified sync.Map
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	conn, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: conn, projectID: projectID, cfg: cfg}
	c.lookup = func(ctx context.Context, resource string) error {
		_, err := conn.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: resource})
		return err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":       projectID,
			"subscriptions": len(Subscriptions(cfg)),
		}), "pubsub client initialized")
	}
	return c, nil
}

// Subscriptions maps each catalog table to its configured subscription,
// omitting tables without one.
func Subscriptions(cfg config.PubSubConfig) map[enums.CatalogTable]string {
	all := map[enums.CatalogTable]string{
		enums.TableProducts:    cfg.ProductsSubscription,
		enums.TableCollections: cfg.CollectionsSubscription,
		enums.TableOrders:      cfg.OrdersSubscription,
		enums.TableBanners:     cfg.BannersSubscription,
		enums.TableSignups:     cfg.SignupsSubscription,
	}
	for table, name := range all {
		if all[table] = strings.TrimSpace(name); all[table] == "" {
			delete(all, table)
		}
	}
	return all
}

func SubscriptionName(cfg config.PubSubConfig, table enums.CatalogTable) string {
	return Subscriptions(cfg)[table]
}

// EnsureSubscription verifies the subscription for table exists remotely.
func (c *Client) EnsureSubscription(ctx context.Context, table enums.CatalogTable) error {
	name := SubscriptionName(c.cfg, table)
	if name == "" {
		return fmt.Errorf("%w for table %s", ErrSubscriptionNotConfigured, table)
	}
	return c.verify(ctx, name)
}

func (c *Client) verify(ctx context.Context, name string) error {
	resource := resourceName(c.projectID, "subscriptions", name)
	if resource == "" {
		return fmt.Errorf("%w: %q", ErrSubscriptionNotConfigured, name)
	}
	if _, ok := c.verified.Load(resource); ok {
		return nil
	}
	if c.lookup == nil {
		return errNotConnected
	}

	err := c.lookup(ctx, resource)
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %q", ErrSubscriptionNotFound, name)
	case err != nil:
		return fmt.Errorf("checking subscription %q: %w", name, err)
	}
	c.verified.Store(resource, struct{}{})
	return nil
}

// Subscriber returns a receive handle for the table's subscription, tuned with
// the configured flow control.
func (c *Client) Subscriber(table enums.CatalogTable) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	resource := resourceName(c.projectID, "subscriptions", SubscriptionName(c.cfg, table))
	if resource == "" {
		return nil
	}
	sub := c.client.Subscriber(resource)
	if n := c.cfg.MaxOutstandingMessages; n > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = n
	}
	if n := c.cfg.NumGoroutinesPerListener; n > 0 {
		sub.ReceiveSettings.NumGoroutines = n
	}
	return sub
}

// Publisher accepts a topic ID or a full topic resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	resource := resourceName(c.projectID, "topics", topic)
	if resource == "" {
		return nil
	}
	return c.client.Publisher(resource)
}

// ChangePublisher returns the publisher for the shared catalog change topic.
func (c *Client) ChangePublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.ChangeTopic)
}

// Ping checks every configured subscription concurrently and reports all
// that are missing or unreachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.lookup == nil {
		return errNotConnected
	}
	subs := Subscriptions(c.cfg)
	if len(subs) == 0 {
		return errNoSubscriptions
	}

	var (
		mu   sync.Mutex
		errs error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, name := range subs {
		g.Go(func() error {
			if err := c.verify(gctx, name); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands an ID to projects/<project>/<kind>/<id>. Full names
// of the right kind pass through; anything unusable yields "".
func resourceName(projectID, kind, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + kind + "/" + name
}
