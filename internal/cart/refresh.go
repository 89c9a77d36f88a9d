package cart

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"souq_back_end/internal/models"
)

// ProductSource returns the current catalog rows for a set of ids. Missing
// ids are left out of the map.
type ProductSource interface {
	GetMany(ctx context.Context, ids []gocql.UUID) (map[gocql.UUID]models.Product, error)
}

// Changes lists the lines a Refresh could not keep as they were.
type Changes struct {
	Removed []gocql.UUID
	Clamped []gocql.UUID
}

func (ch Changes) Any() bool {
	return len(ch.Removed) > 0 || len(ch.Clamped) > 0
}

// Refresh replaces every line's product with its current catalog row so the
// totals use today's prices. Lines whose product is gone or sold out are
// removed and quantities above the stock are lowered to it.
func (c *Cart) Refresh(ctx context.Context, products ProductSource) (Changes, error) {
	var ch Changes
	if c.IsEmpty() {
		return ch, nil
	}

	ids := make([]gocql.UUID, 0, len(c.lines))
	for _, l := range c.lines {
		ids = append(ids, l.Product.ID)
	}
	current, err := products.GetMany(ctx, ids)
	if err != nil {
		return ch, fmt.Errorf("refresh cart products: %w", err)
	}

	fresh := New()
	for _, l := range c.lines {
		p, ok := current[l.Product.ID]
		if !ok || !p.InStock() {
			ch.Removed = append(ch.Removed, l.Product.ID)
			continue
		}
		qty := l.Quantity
		if qty > p.Quantity {
			qty = p.Quantity
			ch.Clamped = append(ch.Clamped, l.Product.ID)
		}
		fresh.Add(p, qty)
	}
	*c = *fresh
	return ch, nil
}
