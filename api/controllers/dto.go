package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/address"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/types"
)

type productResponse struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	DiscountPrice  *decimal.Decimal `json:"discount_price,omitempty"`
	EffectivePrice decimal.Decimal  `json:"effective_price"`
	Sizes          []string         `json:"sizes"`
	FabricWeights  []int64          `json:"fabric_weights"`
	CollectionID   *uuid.UUID       `json:"collection_id,omitempty"`
	CollectionTag  string           `json:"collection_tag"`
	ImageURL       string           `json:"image_url"`
	InStock        bool             `json:"in_stock"`
	CreatedAt      time.Time        `json:"created_at"`
}

func newProductResponse(p models.Product) productResponse {
	sizes := []string(p.Sizes)
	if sizes == nil {
		sizes = []string{}
	}
	weights := []int64(p.FabricWeights)
	if weights == nil {
		weights = []int64{}
	}
	return productResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		DiscountPrice:  p.DiscountPrice,
		EffectivePrice: p.EffectivePrice(),
		Sizes:          sizes,
		FabricWeights:  weights,
		CollectionID:   p.CollectionID,
		CollectionTag:  p.CollectionTag,
		ImageURL:       p.ImageURL,
		InStock:        p.InStock,
		CreatedAt:      p.CreatedAt,
	}
}

type collectionResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
}

type bannerResponse struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle"`
	ImageURL string    `json:"image_url"`
	LinkURL  string    `json:"link_url"`
	Position int       `json:"position"`
}

type orderResponse struct {
	ID          uuid.UUID             `json:"id"`
	UserID      uuid.UUID             `json:"user_id"`
	AddressID   uuid.UUID             `json:"address_id"`
	Product     types.ProductSnapshot `json:"product"`
	TotalAmount decimal.Decimal       `json:"total_amount"`
	Status      string                `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
}

func newOrderResponse(o models.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		AddressID:   o.AddressID,
		Product:     o.ProductSnapshot,
		TotalAmount: o.TotalAmount,
		Status:      o.Status.String(),
		CreatedAt:   o.CreatedAt,
	}
}

func newOrderResponses(orders []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderResponse(o))
	}
	return out
}

type signupResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type addressResponse struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	Formatted  string    `json:"formatted"`
}

func newAddressResponse(a models.Address) addressResponse {
	return addressResponse{
		ID:         a.ID,
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Formatted:  address.Format(a),
	}
}
