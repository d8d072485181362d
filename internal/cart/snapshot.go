package cart

import "github.com/shopspring/decimal"

// Snapshot is an immutable read of the cart. Totals are derived from Items
// when the snapshot is taken and are never stored on the Store.
type Snapshot struct {
	Items      []LineItem      `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

func newSnapshot(items []LineItem) Snapshot {
	snap := Snapshot{
		Items:      make([]LineItem, len(items)),
		TotalPrice: decimal.Zero,
	}
	for i, item := range items {
		snap.Items[i] = item.clone()
		snap.TotalItems += item.Quantity
		snap.TotalPrice = snap.TotalPrice.Add(item.Subtotal())
	}
	return snap
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Find returns the line with the given identity.
func (s Snapshot) Find(key Key) (LineItem, bool) {
	for _, item := range s.Items {
		if item.Identity() == key {
			return item.clone(), true
		}
	}
	return LineItem{}, false
}
