package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one distinct product/size/fabric-weight combination in the cart.
type LineItem struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Size          string          `json:"size"`
	FabricWeight  *int            `json:"fabric_weight"`
	CollectionTag string          `json:"collection_tag"`
	ImageRef      string          `json:"image_ref"`
	Quantity      int             `json:"quantity"`
}

// Key is the comparable identity of a LineItem. An absent fabric weight and a
// present one never compare equal.
type Key struct {
	ProductID       string
	Size            string
	FabricWeight    int
	HasFabricWeight bool
}

func NewKey(productID, size string, fabricWeight *int) Key {
	key := Key{
		ProductID: strings.TrimSpace(productID),
		Size:      strings.TrimSpace(size),
	}
	if fabricWeight != nil {
		key.FabricWeight = *fabricWeight
		key.HasFabricWeight = true
	}
	return key
}

// FabricWeightPtr returns the fabric weight as an optional value.
func (k Key) FabricWeightPtr() *int {
	if !k.HasFabricWeight {
		return nil
	}
	w := k.FabricWeight
	return &w
}

func (i LineItem) Identity() Key {
	return NewKey(i.ProductID, i.Size, i.FabricWeight)
}

// Subtotal is unit price times quantity.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i LineItem) clone() LineItem {
	out := i
	if i.FabricWeight != nil {
		w := *i.FabricWeight
		out.FabricWeight = &w
	}
	return out
}

// Candidate is the input to AddItem. A zero Quantity means one.
type Candidate struct {
	ProductID     string
	Name          string
	UnitPrice     decimal.Decimal
	Size          string
	FabricWeight  *int
	CollectionTag string
	ImageRef      string
	Quantity      int
}

func (c Candidate) lineItem() LineItem {
	item := LineItem{
		ProductID:     strings.TrimSpace(c.ProductID),
		Name:          c.Name,
		UnitPrice:     c.UnitPrice,
		Size:          strings.TrimSpace(c.Size),
		CollectionTag: c.CollectionTag,
		ImageRef:      c.ImageRef,
		Quantity:      c.Quantity,
	}
	if c.FabricWeight != nil {
		w := *c.FabricWeight
		item.FabricWeight = &w
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	return item
}
