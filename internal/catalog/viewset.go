package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/angelmondragon/storefront/internal/realtime"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	StorefrontViewID realtime.ViewID = "storefront"
	AdminViewID      realtime.ViewID = "admin-dashboard"
)

// Mounter is the subset of realtime.Manager the view set drives.
type Mounter interface {
	Mount(ctx context.Context, view realtime.ViewID, table enums.CatalogTable, mask enums.ChangeEventMask, refetch realtime.RefetchFunc) (*realtime.Handle, error)
	Unmount(ctx context.Context, view realtime.ViewID, table enums.CatalogTable) error
}

type binding struct {
	view    realtime.ViewID
	table   enums.CatalogTable
	refetch realtime.RefetchFunc
}

// ViewSet owns the catalog read models of the process and keeps them mounted
// on the realtime manager.
type ViewSet struct {
	Products    *View[models.Product]
	Collections *View[models.Collection]
	Banners     *View[models.Banner]
	Orders      *View[models.Order]
	Signups     *View[models.Signup]

	manager  Mounter
	logg     *logger.Logger
	bindings []binding

	mu      sync.Mutex
	handles map[enums.CatalogTable]*realtime.Handle
}

type ViewSetParams struct {
	Repository Repository
	Manager    Mounter
	Logger     *logger.Logger
	// Admin adds the dashboard views (orders, signups).
	Admin bool
}

func NewViewSet(params ViewSetParams) (*ViewSet, error) {
	if params.Repository == nil {
		return nil, errors.New("catalog repository required")
	}
	if params.Manager == nil {
		return nil, errors.New("realtime manager required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	repo := params.Repository
	s := &ViewSet{
		Products:    NewView("products", repo.ListProducts),
		Collections: NewView("collections", repo.ListCollections),
		Banners:     NewView("banners", repo.ListBanners),
		Orders:      NewView("orders", repo.ListOrders),
		Signups:     NewView("signups", repo.ListSignups),
		manager:     params.Manager,
		logg:        params.Logger,
		handles:     map[enums.CatalogTable]*realtime.Handle{},
	}
	s.bindings = []binding{
		{view: StorefrontViewID, table: enums.TableProducts, refetch: s.Products.Refetch},
		{view: StorefrontViewID, table: enums.TableCollections, refetch: s.Collections.Refetch},
		{view: StorefrontViewID, table: enums.TableBanners, refetch: s.Banners.Refetch},
	}
	if params.Admin {
		s.bindings = append(s.bindings,
			binding{view: AdminViewID, table: enums.TableOrders, refetch: s.Orders.Refetch},
			binding{view: AdminViewID, table: enums.TableSignups, refetch: s.Signups.Refetch},
		)
	}
	return s, nil
}

// Mount subscribes every view that is not already live. A view whose
// subscribe fails gets one direct load so it is not blank, and is retried by
// the next Mount.
func (s *ViewSet) Mount(ctx context.Context) error {
	var errs error
	for _, b := range s.bindings {
		s.mu.Lock()
		existing := s.handles[b.table]
		s.mu.Unlock()
		if existing != nil && existing.State().IsLive() {
			continue
		}

		handle, err := s.manager.Mount(ctx, b.view, b.table, enums.MaskAll, b.refetch)
		if err != nil {
			logCtx := s.logg.WithViewID(s.logg.WithTable(ctx, string(b.table)), string(b.view))
			s.logg.Warn(s.logg.WithFields(logCtx, pkgerrors.Dump(err).Fields()), "view mounted without live updates")
			errs = multierr.Append(errs, err)
			if commit, loadErr := b.refetch(ctx); loadErr == nil {
				commit()
			} else {
				s.logg.Warn(s.logg.WithFields(logCtx, pkgerrors.Dump(loadErr).Fields()), "fallback load failed")
			}
			continue
		}
		s.mu.Lock()
		s.handles[b.table] = handle
		s.mu.Unlock()
	}
	return errs
}

// WaitReady blocks until every mounted view committed its first refetch.
func (s *ViewSet) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	handles := make([]*realtime.Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		select {
		case <-h.Ready():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Unmount releases every subscription of the set.
func (s *ViewSet) Unmount(ctx context.Context) error {
	var errs error
	for _, b := range s.bindings {
		errs = multierr.Append(errs, s.manager.Unmount(ctx, b.view, b.table))
	}
	s.mu.Lock()
	s.handles = map[enums.CatalogTable]*realtime.Handle{}
	s.mu.Unlock()
	return errs
}

// Tables lists the tables this set keeps fresh.
func (s *ViewSet) Tables() []enums.CatalogTable {
	out := make([]enums.CatalogTable, 0, len(s.bindings))
	for _, b := range s.bindings {
		out = append(out, b.table)
	}
	return out
}

// Product looks up an active product in the products view.
func (s *ViewSet) Product(id uuid.UUID) (models.Product, bool) {
	return s.Products.Find(func(p models.Product) bool { return p.ID == id })
}
