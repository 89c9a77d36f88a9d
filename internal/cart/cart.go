package cart

import (
	"encoding/json"

	"github.com/gocql/gocql"
	"github.com/shopspring/decimal"

	"souq_back_end/internal/models"
)

// Line is one product in the cart with the quantity wanted.
type Line struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// Subtotal is quantity times unit price.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart keeps its lines in insertion order. The totals are derived from the
// lines after every change and never set on their own.
type Cart struct {
	lines      []Line
	totalItems int
	totalPrice decimal.Decimal
}

func New() *Cart {
	return &Cart{}
}

// Add merges quantity into the existing line for the product or appends a
// new line. Non-positive quantities are ignored.
func (c *Cart) Add(product models.Product, quantity int) {
	if quantity <= 0 {
		return
	}
	if i := c.index(product.ID); i >= 0 {
		c.lines[i].Quantity += quantity
	} else {
		c.lines = append(c.lines, Line{Product: product, Quantity: quantity})
	}
	c.recompute()
}

// Remove drops the line for productID. Absent products are a no-op.
func (c *Cart) Remove(productID gocql.UUID) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.recompute()
}

// SetQuantity replaces the quantity of an existing line. A quantity of zero
// or less removes the line; absent products are a no-op.
func (c *Cart) SetQuantity(productID gocql.UUID, quantity int) {
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.lines[i].Quantity = quantity
	c.recompute()
}

func (c *Cart) Clear() {
	c.lines = nil
	c.recompute()
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns the line for productID, if any.
func (c *Cart) Line(productID gocql.UUID) (Line, bool) {
	if i := c.index(productID); i >= 0 {
		return c.lines[i], true
	}
	return Line{}, false
}

func (c *Cart) TotalItems() int            { return c.totalItems }
func (c *Cart) TotalPrice() decimal.Decimal { return c.totalPrice }
func (c *Cart) IsEmpty() bool               { return len(c.lines) == 0 }

func (c *Cart) index(productID gocql.UUID) int {
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) recompute() {
	items := 0
	price := decimal.Zero
	for _, l := range c.lines {
		items += l.Quantity
		price = price.Add(l.Subtotal())
	}
	c.totalItems = items
	c.totalPrice = price
}

type cartJSON struct {
	Items      []Line          `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	items := c.lines
	if items == nil {
		items = []Line{}
	}
	return json.Marshal(cartJSON{Items: items, TotalItems: c.totalItems, TotalPrice: c.totalPrice})
}

// UnmarshalJSON restores the lines and recomputes the totals rather than
// trusting the stored ones.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var raw cartJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.lines = c.lines[:0]
	for _, l := range raw.Items {
		if l.Quantity > 0 {
			c.lines = append(c.lines, l)
		}
	}
	c.recompute()
	return nil
}
