package product

import (
	"fmt"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"souq_back_end/internal/models"
)

// Sort orders accepted by ?sort=. Relevance keeps the search ranking.
const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
)

type searchFilters struct {
	minPrice *decimal.Decimal
	maxPrice *decimal.Decimal
	sort     string
}

func parseSearchFilters(c *gin.Context) (searchFilters, error) {
	f := searchFilters{sort: c.DefaultQuery("sort", SortRelevance)}

	switch f.sort {
	case SortRelevance, SortPriceAsc, SortPriceDesc, SortNewest:
	default:
		return f, fmt.Errorf("unknown sort %q", f.sort)
	}

	for param, dst := range map[string]**decimal.Decimal{"min_price": &f.minPrice, "max_price": &f.maxPrice} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("invalid %s", param)
		}
		*dst = &d
	}
	return f, nil
}

// apply drops products outside the price range and reorders the rest.
// The input slice is not modified.
func (f searchFilters) apply(products []models.Product) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if f.minPrice != nil && p.Price.LessThan(*f.minPrice) {
			continue
		}
		if f.maxPrice != nil && p.Price.GreaterThan(*f.maxPrice) {
			continue
		}
		out = append(out, p)
	}

	switch f.sort {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b models.Product) int { return a.Price.Cmp(b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b models.Product) int { return b.Price.Cmp(a.Price) })
	case SortNewest:
		slices.SortStableFunc(out, func(a, b models.Product) int { return b.CreatedAt.Compare(a.CreatedAt) })
	}
	return out
}
