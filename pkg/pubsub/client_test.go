package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/enums"
)

func TestSubscriptionName(t *testing.T) {
	cfg := config.PubSubConfig{
		ProductsSubscription:    " products-sub ",
		CollectionsSubscription: "collections-sub",
		OrdersSubscription:      "orders-sub",
	}

	cases := map[enums.CatalogTable]string{
		enums.TableProducts:    "products-sub",
		enums.TableCollections: "collections-sub",
		enums.TableOrders:      "orders-sub",
		enums.TableBanners:     "",
		enums.TableSignups:     "",
	}
	for table, want := range cases {
		if got := SubscriptionName(cfg, table); got != want {
			t.Fatalf("table %s: expected %q got %q", table, want, got)
		}
	}

	if subs := Subscriptions(cfg); len(subs) != 3 {
		t.Fatalf("expected 3 configured subscriptions, got %v", subs)
	}
}

func TestResourceName(t *testing.T) {
	if got := resourceName("proj", "subscriptions", "sub-a"); got != "projects/proj/subscriptions/sub-a" {
		t.Fatalf("unexpected subscription name %s", got)
	}
	full := "projects/other/topics/changes"
	if got := resourceName("proj", "topics", full); got != full {
		t.Fatalf("full resource names should pass through, got %s", got)
	}
	if got := resourceName("", "topics", "changes"); got != "" {
		t.Fatalf("missing project should yield empty name, got %s", got)
	}
	if got := resourceName("proj", "topics", "  "); got != "" {
		t.Fatalf("blank name should yield empty name, got %s", got)
	}
}

func TestEnsureSubscriptionRequiresConfiguredName(t *testing.T) {
	c := &Client{projectID: "proj", cfg: config.PubSubConfig{ProductsSubscription: "products-sub"}}
	err := c.EnsureSubscription(context.Background(), enums.TableBanners)
	if !errors.Is(err, ErrSubscriptionNotConfigured) {
		t.Fatalf("expected not configured error, got %v", err)
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.Subscriber(enums.TableProducts) != nil {
		t.Fatal("nil client should return nil subscriber")
	}
	if c.Publisher("changes") != nil {
		t.Fatal("nil client should return nil publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("nil client ping should fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil client close should be a no-op, got %v", err)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
}

type fakeLookup struct {
	mu      sync.Mutex
	calls   map[string]int
	missing map[string]bool
}

func (f *fakeLookup) get(_ context.Context, resource string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[resource]++
	if f.missing[resource] {
		return status.Error(codes.NotFound, "no such subscription")
	}
	return nil
}

func TestEnsureSubscriptionCachesVerifiedNames(t *testing.T) {
	lookup := &fakeLookup{}
	c := &Client{projectID: "proj", cfg: config.PubSubConfig{ProductsSubscription: "products-sub"}, lookup: lookup.get}

	for i := 0; i < 3; i++ {
		if err := c.EnsureSubscription(context.Background(), enums.TableProducts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := lookup.calls["projects/proj/subscriptions/products-sub"]; n != 1 {
		t.Fatalf("expected one remote lookup, got %d", n)
	}
}

func TestPingReportsEveryMissingSubscription(t *testing.T) {
	lookup := &fakeLookup{missing: map[string]bool{
		"projects/proj/subscriptions/orders-sub":  true,
		"projects/proj/subscriptions/banners-sub": true,
	}}
	c := &Client{projectID: "proj", lookup: lookup.get, cfg: config.PubSubConfig{
		ProductsSubscription: "products-sub",
		OrdersSubscription:   "orders-sub",
		BannersSubscription:  "banners-sub",
	}}

	err := c.Ping(context.Background())
	if !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Fatalf("expected both missing subscriptions reported, got %d: %v", n, err)
	}

	c.cfg = config.PubSubConfig{}
	if err := c.Ping(context.Background()); !errors.Is(err, errNoSubscriptions) {
		t.Fatalf("expected no subscriptions error, got %v", err)
	}
}
