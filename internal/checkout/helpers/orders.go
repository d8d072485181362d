package helpers

import (
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/google/uuid"
)

// BuildOrderRecords turns each line of the snapshot into one pending order.
// Every record shares the checkout instant.
func BuildOrderRecords(snapshot cart.Snapshot, userID, addressID uuid.UUID, at time.Time) []models.Order {
	orders := make([]models.Order, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		orders = append(orders, models.Order{
			ID:              uuid.New(),
			UserID:          userID,
			AddressID:       addressID,
			ProductSnapshot: ProductSnapshot(item),
			TotalAmount:     item.Subtotal(),
			Status:          enums.OrderStatusPending,
			CreatedAt:       at,
		})
	}
	return orders
}

// ProductSnapshot freezes a cart line for the order row. An absent fabric
// weight stays nil so it serializes as null.
func ProductSnapshot(item cart.LineItem) types.ProductSnapshot {
	var weight *int
	if item.FabricWeight != nil {
		w := *item.FabricWeight
		weight = &w
	}
	return types.ProductSnapshot{
		ProductID:    item.ProductID,
		Name:         item.Name,
		Size:         item.Size,
		FabricWeight: weight,
		Quantity:     item.Quantity,
		Price:        item.UnitPrice,
		Collection:   item.CollectionTag,
		ImageRef:     item.ImageRef,
	}
}
