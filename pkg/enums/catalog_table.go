package enums

import "fmt"

// CatalogTable names a remote catalog table that emits change notifications.
type CatalogTable string

const (
	TableProducts    CatalogTable = "products"
	TableCollections CatalogTable = "collections"
	TableOrders      CatalogTable = "orders"
	TableBanners     CatalogTable = "banners"
	TableSignups     CatalogTable = "signups"
)

var validCatalogTables = []CatalogTable{
	TableProducts,
	TableCollections,
	TableOrders,
	TableBanners,
	TableSignups,
}

// CatalogTables returns every known table in declaration order.
func CatalogTables() []CatalogTable {
	out := make([]CatalogTable, len(validCatalogTables))
	copy(out, validCatalogTables)
	return out
}

// String implements fmt.Stringer.
func (t CatalogTable) String() string {
	return string(t)
}

// IsValid reports whether the value is a known CatalogTable.
func (t CatalogTable) IsValid() bool {
	for _, candidate := range validCatalogTables {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCatalogTable converts raw input into a CatalogTable.
func ParseCatalogTable(value string) (CatalogTable, error) {
	for _, candidate := range validCatalogTables {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid catalog table %q", value)
}
