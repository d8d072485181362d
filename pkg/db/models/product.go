package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable catalog listing. Sizes and FabricWeights are the
// variant dimensions a cart line may pick from; an empty list means the
// product has no such dimension.
type Product struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name          string           `gorm:"column:name;not null"`
	Description   string           `gorm:"column:description;not null;default:''"`
	Price         decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountPrice *decimal.Decimal `gorm:"column:discount_price;type:numeric(12,2)"`
	Sizes         pq.StringArray   `gorm:"column:sizes;type:text[]"`
	FabricWeights pq.Int64Array    `gorm:"column:fabric_weights;type:integer[]"`
	CollectionID  *uuid.UUID       `gorm:"column:collection_id;type:uuid"`
	CollectionTag string           `gorm:"column:collection_tag;not null;default:''"`
	ImageURL      string           `gorm:"column:image_url;not null;default:''"`
	InStock       bool             `gorm:"column:in_stock;not null;default:true"`
	IsActive      bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// EffectivePrice is the discount price when it is set, positive and lower
// than the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.IsPositive() && p.DiscountPrice.LessThan(p.Price) {
		return *p.DiscountPrice
	}
	return p.Price
}

// OffersSize reports whether size is a valid pick. Products without sizes only
// accept the empty size.
func (p Product) OffersSize(size string) bool {
	if len(p.Sizes) == 0 {
		return size == ""
	}
	for _, candidate := range p.Sizes {
		if candidate == size {
			return true
		}
	}
	return false
}

// OffersFabricWeight reports whether weight is a valid pick. A nil weight is
// valid only for products without fabric weights.
func (p Product) OffersFabricWeight(weight *int) bool {
	if len(p.FabricWeights) == 0 {
		return weight == nil
	}
	if weight == nil {
		return false
	}
	for _, candidate := range p.FabricWeights {
		if candidate == int64(*weight) {
			return true
		}
	}
	return false
}
