package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout/helpers"
	"github.com/angelmondragon/storefront/internal/realtime"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency  = 4
	defaultWriteTimeout = 10 * time.Second
	defaultCurrency     = "₹"
)

// CartStore is the surface checkout needs from the cart.
type CartStore interface {
	Snapshot() cart.Snapshot
	RemoveOrdered(ctx context.Context, ordered []cart.LineItem) cart.Snapshot
}

type orderWriter interface {
	Create(ctx context.Context, order *models.Order) error
}

// Service executes checkout orchestration.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*Result, error)
}

type PlaceOrderInput struct {
	UserID  uuid.UUID
	Address models.Address
}

// Result describes a fully persisted checkout.
type Result struct {
	Orders     []models.Order  `json:"orders"`
	Summary    string          `json:"summary"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type ServiceParams struct {
	Cart     CartStore
	Orders   orderWriter
	Notifier realtime.ChangeNotifier
	Logger   *logger.Logger
	Metrics  *metrics.CheckoutMetrics

	Concurrency    int
	WriteTimeout   time.Duration
	CurrencySymbol string
	StoreName      string
	Clock          func() time.Time
}

type service struct {
	cart     CartStore
	orders   orderWriter
	notifier realtime.ChangeNotifier
	logg     *logger.Logger
	metrics  *metrics.CheckoutMetrics

	concurrency  int
	writeTimeout time.Duration
	currency     string
	storeName    string
	now          func() time.Time

	// inFlight rejects a second checkout of the same cart while one is running.
	inFlight sync.Mutex
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Cart == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	s := &service{
		cart:         params.Cart,
		orders:       params.Orders,
		notifier:     params.Notifier,
		logg:         params.Logger,
		metrics:      params.Metrics,
		concurrency:  params.Concurrency,
		writeTimeout: params.WriteTimeout,
		currency:     params.CurrencySymbol,
		storeName:    params.StoreName,
		now:          params.Clock,
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = defaultWriteTimeout
	}
	if s.currency == "" {
		s.currency = defaultCurrency
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// PlaceOrder writes one order per cart line from a single snapshot. Only when
// every write succeeded are the ordered lines taken out of the cart; lines
// added during the writes stay. Written rows are never rolled back. The writes
// run to completion even if ctx is canceled.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*Result, error) {
	start := s.now()
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Address.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if !s.inFlight.TryLock() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}
	defer s.inFlight.Unlock()

	snapshot := s.cart.Snapshot()
	if snapshot.IsEmpty() {
		s.metrics.ObserveAttempt(metrics.OutcomeRejected, s.now().Sub(start))
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	ctx = s.logg.WithUserID(ctx, input.UserID.String())
	orders := helpers.BuildOrderRecords(snapshot, input.UserID, input.Address.ID, start.UTC())
	failures := s.writeOrders(ctx, orders)

	var (
		combined error
		written  []string
		failed   []map[string]any
	)
	for i, err := range failures {
		if err == nil {
			written = append(written, orders[i].ID.String())
			continue
		}
		combined = multierr.Append(combined, fmt.Errorf("order %s (%s): %w", orders[i].ID, orders[i].ProductSnapshot.Name, err))
		failed = append(failed, map[string]any{
			"product_id": orders[i].ProductSnapshot.ProductID,
			"size":       orders[i].ProductSnapshot.Size,
			"code":       pkgerrors.CodeOf(err),
		})
	}
	s.metrics.AddOrderWrites(metrics.OutcomeSuccess, len(written))
	s.metrics.AddOrderWrites(metrics.OutcomeFailure, len(failed))

	if combined != nil {
		details := map[string]any{
			"written":           len(written),
			"failed":            len(failed),
			"written_order_ids": written,
			"failed_lines":      failed,
		}
		s.logg.Error(s.logg.WithFields(ctx, details), "checkout partially failed; cart kept", combined)
		s.metrics.ObserveAttempt(metrics.OutcomePartial, s.now().Sub(start))
		return nil, pkgerrors.Wrap(pkgerrors.CodeCheckoutPartial, combined, "order writes failed").WithDetails(details)
	}

	s.cart.RemoveOrdered(ctx, snapshot.Items)
	s.notifyOrders(ctx)

	result := &Result{
		Orders:     orders,
		Summary:    BuildSummary(SummaryInput{StoreName: s.storeName, Currency: s.currency, Snapshot: snapshot, Address: input.Address, Orders: orders}),
		TotalItems: snapshot.TotalItems,
		TotalPrice: snapshot.TotalPrice,
	}
	s.metrics.ObserveAttempt(metrics.OutcomeSuccess, s.now().Sub(start))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"orders":      len(orders),
		"total_items": snapshot.TotalItems,
		"total_price": snapshot.TotalPrice.StringFixed(2),
	}), "checkout completed")
	return result, nil
}

// writeOrders issues every write and waits for all of them, so the outcome of
// each line is known. It returns one error slot per order. Each write is
// bounded by the write timeout, not by the caller.
func (s *service) writeOrders(ctx context.Context, orders []models.Order) []error {
	ctx = context.WithoutCancel(ctx)
	outcomes := make([]error, len(orders))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range orders {
		g.Go(func() error {
			writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
			defer cancel()
			outcomes[i] = s.orders.Create(s.logg.WithOrderID(writeCtx, orders[i].ID.String()), &orders[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *service) notifyOrders(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyChange(ctx, enums.TableOrders, enums.ChangeInsert); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "orders change notification failed")
	}
}
