package checkout

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront/internal/address"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout/helpers"
	"github.com/angelmondragon/storefront/pkg/db/models"
)

type SummaryInput struct {
	StoreName string
	Currency  string
	Snapshot  cart.Snapshot
	Address   models.Address
	Orders    []models.Order
}

// BuildSummary renders the confirmation message handed to the customer and
// the store. Lines follow the snapshot order.
func BuildSummary(in SummaryInput) string {
	currency := in.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	var b strings.Builder
	if in.StoreName != "" {
		fmt.Fprintf(&b, "New order at %s\n", in.StoreName)
	} else {
		b.WriteString("New order\n")
	}
	if len(in.Orders) > 0 {
		refs := make([]string, 0, len(in.Orders))
		for _, o := range in.Orders {
			refs = append(refs, shortRef(o.ID.String()))
		}
		fmt.Fprintf(&b, "Order refs: %s\n", strings.Join(refs, ", "))
	}
	b.WriteString("\n")

	for i, item := range in.Snapshot.Items {
		fmt.Fprintf(&b, "%d. %s", i+1, item.Name)
		if variant := variantLabel(item); variant != "" {
			fmt.Fprintf(&b, " (%s)", variant)
		}
		fmt.Fprintf(&b, " x%d = %s\n", item.Quantity, helpers.FormatMoney(currency, item.Subtotal()))
	}

	fmt.Fprintf(&b, "\nItems: %d\n", in.Snapshot.TotalItems)
	fmt.Fprintf(&b, "Total: %s\n", helpers.FormatMoney(currency, in.Snapshot.TotalPrice))
	if addr := address.Format(in.Address); addr != "" {
		fmt.Fprintf(&b, "Ship to: %s\n", addr)
	}
	if in.Address.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", in.Address.Phone)
	}
	return strings.TrimRight(b.String(), "\n")
}

func variantLabel(item cart.LineItem) string {
	var parts []string
	if item.Size != "" {
		parts = append(parts, "Size "+item.Size)
	}
	if item.FabricWeight != nil {
		parts = append(parts, fmt.Sprintf("%d GSM", *item.FabricWeight))
	}
	return strings.Join(parts, ", ")
}

func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
