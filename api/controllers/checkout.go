package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/address"
	"github.com/angelmondragon/storefront/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type cartReader interface {
	Snapshot() cart.Snapshot
}

type addressResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, input address.Input) (*models.Address, error)
}

type checkoutRequest struct {
	Address address.Input `json:"address"`
}

type checkoutResponse struct {
	Orders     []orderResponse `json:"orders"`
	Summary    string          `json:"summary"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	ShipTo     addressResponse `json:"ship_to"`
	PlacedAt   time.Time       `json:"placed_at"`
}

// Checkout places one order per cart line for the calling user. An empty
// cart is rejected before the address is resolved so no address is saved for
// a checkout that cannot happen.
func Checkout(svc checkoutsvc.Service, carts cartReader, addresses addressResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || carts == nil || addresses == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id is required"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if carts.Snapshot().TotalItems == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
			return
		}

		addr, err := addresses.Resolve(r.Context(), userID, payload.Address)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PlaceOrder(r.Context(), checkoutsvc.PlaceOrderInput{UserID: userID, Address: *addr})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := checkoutResponse{
			Orders:     newOrderResponses(result.Orders),
			Summary:    result.Summary,
			TotalItems: result.TotalItems,
			TotalPrice: result.TotalPrice,
			ShipTo:     newAddressResponse(*addr),
		}
		if len(result.Orders) > 0 {
			resp.PlacedAt = result.Orders[0].CreatedAt
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}
