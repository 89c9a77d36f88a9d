package models

import (
	"time"

	"github.com/gocql/gocql"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID               gocql.UUID      `json:"id"`
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	Image            string          `json:"image"`
	Quantity         int             `json:"quantity"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"short_description"`
	LongDescription  string          `json:"long_description"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// InStock reports whether at least one unit can be sold.
func (p Product) InStock() bool {
	return p.Quantity > 0
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type ProductMedia struct {
	ID        gocql.UUID `json:"id"`
	ProductID gocql.UUID `json:"product_id"`
	URL       string     `json:"url"`
	Path      string     `json:"path"`
	MediaType MediaType  `json:"media_type"`
	Position  int        `json:"position"`
	CreatedAt time.Time  `json:"created_at"`
}

// ProductPatch carries the fields an admin update may change. Nil fields
// are left untouched.
type ProductPatch struct {
	Name             *string
	Price            *decimal.Decimal
	Image            *string
	Quantity         *int
	Description      *string
	ShortDescription *string
	LongDescription  *string
}

// Apply copies the set fields onto p.
func (patch ProductPatch) Apply(p *Product) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	if patch.Quantity != nil {
		p.Quantity = *patch.Quantity
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.ShortDescription != nil {
		p.ShortDescription = *patch.ShortDescription
	}
	if patch.LongDescription != nil {
		p.LongDescription = *patch.LongDescription
	}
}
