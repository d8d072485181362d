package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ProductSnapshot freezes the purchased line inside an order row as JSONB.
// FabricWeight is written as JSON null when the line has no fabric weight.
type ProductSnapshot struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Size         string          `json:"size"`
	FabricWeight *int            `json:"fabric_weight"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Collection   string          `json:"collection"`
	ImageRef     string          `json:"image_ref,omitempty"`
}

// Value marshals the snapshot into JSON for Postgres.
func (p ProductSnapshot) Value() (driver.Value, error) {
	buf, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the snapshot.
func (p *ProductSnapshot) Scan(value interface{}) error {
	if value == nil {
		*p = ProductSnapshot{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("product snapshot: unsupported scan type %T", value)
	}

	var result ProductSnapshot
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*p = result
	return nil
}
