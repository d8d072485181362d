package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/angelmondragon/storefront/internal/cart"
)

type lineRef struct {
	ProductID    string `json:"product_id" validate:"required,uuid"`
	Size         string `json:"size"`
	FabricWeight *int   `json:"fabric_weight,omitempty" validate:"omitempty,min=1"`
}

func (l lineRef) key() cartsvc.Key {
	return cartsvc.NewKey(l.ProductID, l.Size, l.FabricWeight)
}

func (l lineRef) productID() uuid.UUID {
	id, _ := uuid.Parse(l.ProductID)
	return id
}

type addItemRequest struct {
	lineRef
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}

type updateItemRequest struct {
	lineRef
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}

type removeItemRequest struct {
	lineRef
}

type lineResponse struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Size          string          `json:"size"`
	FabricWeight  *int            `json:"fabric_weight"`
	CollectionTag string          `json:"collection_tag"`
	ImageRef      string          `json:"image_ref"`
	Quantity      int             `json:"quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

type cartResponse struct {
	Items      []lineResponse  `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	// Degraded is set while the last durable save failed.
	Degraded bool `json:"degraded"`
}

func newCartResponse(snap cartsvc.Snapshot, degraded bool) cartResponse {
	items := make([]lineResponse, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, lineResponse{
			ProductID:     item.ProductID,
			Name:          item.Name,
			UnitPrice:     item.UnitPrice,
			Size:          item.Size,
			FabricWeight:  item.FabricWeight,
			CollectionTag: item.CollectionTag,
			ImageRef:      item.ImageRef,
			Quantity:      item.Quantity,
			Subtotal:      item.Subtotal(),
		})
	}
	return cartResponse{
		Items:      items,
		TotalItems: snap.TotalItems,
		TotalPrice: snap.TotalPrice,
		Degraded:   degraded,
	}
}
