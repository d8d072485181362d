package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/realtime"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type listResponse[T any] struct {
	Items     []T        `json:"items"`
	Loaded    bool       `json:"loaded"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

func newListResponse[R any, T any](view *catalog.View[R], convert func(R) T, keep func(R) bool) listResponse[T] {
	rows := view.Rows()
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		if keep != nil && !keep(row) {
			continue
		}
		items = append(items, convert(row))
	}
	out := listResponse[T]{Items: items, Loaded: view.Loaded()}
	if at := view.FetchedAt(); !at.IsZero() {
		out.FetchedAt = &at
	}
	return out
}

// CatalogProducts lists the live products view. The collection query
// parameter filters by collection tag and in_stock=true drops sold-out rows.
func CatalogProducts(views *catalog.ViewSet, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if views == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		tag := strings.TrimSpace(r.URL.Query().Get("collection"))
		inStockOnly, err := validators.ParseQueryBool(r, "in_stock", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newListResponse(views.Products, newProductResponse, func(p models.Product) bool {
			if tag != "" && !strings.EqualFold(p.CollectionTag, tag) {
				return false
			}
			return !inStockOnly || p.InStock
		}))
	}
}

func CatalogProduct(views *catalog.ViewSet, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if views == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, ok := views.Product(id)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}

func CatalogCollections(views *catalog.ViewSet, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if views == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		responses.WriteSuccess(w, newListResponse(views.Collections, func(c models.Collection) collectionResponse {
			return collectionResponse{ID: c.ID, Name: c.Name, Slug: c.Slug, Description: c.Description, ImageURL: c.ImageURL}
		}, nil))
	}
}

func CatalogBanners(views *catalog.ViewSet, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if views == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		responses.WriteSuccess(w, newListResponse(views.Banners, func(b models.Banner) bannerResponse {
			return bannerResponse{ID: b.ID, Title: b.Title, Subtitle: b.Subtitle, ImageURL: b.ImageURL, LinkURL: b.LinkURL, Position: b.Position}
		}, nil))
	}
}

// AdminOrders lists the dashboard orders view, newest first.
func AdminOrders(views *catalog.ViewSet, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if views == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		status, err := validators.ParseQueryEnum(r, "status", parseStatusFilter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newListResponse(views.Orders, newOrderResponse, func(o models.Order) bool {
			return status == "" || o.Status == status
		}))
	}
}

func AdminSignups(views *catalog.ViewSet, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if views == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		responses.WriteSuccess(w, newListResponse(views.Signups, func(s models.Signup) signupResponse {
			return signupResponse{ID: s.ID, Email: s.Email, Name: s.Name, Phone: s.Phone, CreatedAt: s.CreatedAt}
		}, nil))
	}
}

type subscriptionLister interface {
	Active() []realtime.HandleInfo
}

// RealtimeStatus reports every live subscription of the process.
func RealtimeStatus(manager subscriptionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := []realtime.HandleInfo{}
		if manager != nil {
			active = append(active, manager.Active()...)
		}
		responses.WriteSuccess(w, map[string]any{"subscriptions": active})
	}
}

// parseStatusFilter matches order statuses case-insensitively.
func parseStatusFilter(raw string) (enums.OrderStatus, error) {
	for _, s := range enums.OrderStatuses() {
		if strings.EqualFold(s.String(), raw) {
			return s, nil
		}
	}
	return "", fmt.Errorf("must be one of %v", enums.OrderStatuses())
}
