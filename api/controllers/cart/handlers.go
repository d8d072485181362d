package cart

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	cartsvc "github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Store is the cart surface the handlers drive.
type Store interface {
	Snapshot() cartsvc.Snapshot
	AddItem(ctx context.Context, candidate cartsvc.Candidate) (cartsvc.Snapshot, error)
	UpdateQuantity(ctx context.Context, key cartsvc.Key, quantity int) cartsvc.Snapshot
	RemoveItem(ctx context.Context, key cartsvc.Key) cartsvc.Snapshot
	Clear(ctx context.Context) cartsvc.Snapshot
	Degraded() bool
}

// ProductLookup resolves product ids against the live catalog.
type ProductLookup interface {
	Product(id uuid.UUID) (models.Product, bool)
}

// CartFetch returns the current cart.
func CartFetch(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}
		responses.WriteSuccess(w, newCartResponse(store.Snapshot(), store.Degraded()))
	}
}

// CartAddItem prices the line from the catalog and merges it into the cart.
// The name, price, collection tag and image always come from the catalog
// row, never from the client.
func CartAddItem(store Store, products ProductLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, ok := products.Product(payload.productID())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		if !product.InStock {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "product is out of stock").
				WithDetails(map[string]any{"product_id": product.ID}))
			return
		}
		if !product.OffersSize(payload.Size) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "size is not offered for this product").
				WithDetails(map[string]any{"size": payload.Size, "sizes": []string(product.Sizes)}))
			return
		}
		if !product.OffersFabricWeight(payload.FabricWeight) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "fabric weight is not offered for this product").
				WithDetails(map[string]any{"fabric_weights": []int64(product.FabricWeights)}))
			return
		}

		snap, err := store.AddItem(r.Context(), cartsvc.Candidate{
			ProductID:     product.ID.String(),
			Name:          product.Name,
			UnitPrice:     product.EffectivePrice(),
			Size:          payload.Size,
			FabricWeight:  payload.FabricWeight,
			CollectionTag: product.CollectionTag,
			ImageRef:      product.ImageURL,
			Quantity:      payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snap, store.Degraded()))
	}
}

// CartUpdateItem sets a line's quantity exactly. Zero removes the line and
// unknown lines are left alone.
func CartUpdateItem(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap := store.UpdateQuantity(r.Context(), payload.key(), payload.Quantity)
		responses.WriteSuccess(w, newCartResponse(snap, store.Degraded()))
	}
}

func CartRemoveItem(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}
		var payload removeItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap := store.RemoveItem(r.Context(), payload.key())
		responses.WriteSuccess(w, newCartResponse(snap, store.Degraded()))
	}
}

func CartClear(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}
		snap := store.Clear(r.Context())
		responses.WriteSuccess(w, newCartResponse(snap, store.Degraded()))
	}
}
