package models

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{StatusPending, StatusProcessing, StatusCompleted, StatusCancelled}

// OrderStatuses lists every status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func (s OrderStatus) Valid() bool {
	for _, known := range orderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseOrderStatus accepts only the four known statuses.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

type Order struct {
	ID           gocql.UUID      `json:"id"`
	UserID       *string         `json:"user_id"`
	FullName     string          `json:"full_name"`
	PhoneNumber  string          `json:"phone_number"`
	Address      string          `json:"address"`
	Notes        string          `json:"notes"`
	DeliveryZone string          `json:"delivery_zone"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// OrderItem is the price snapshot of one cart line at checkout.
type OrderItem struct {
	ID        gocql.UUID      `json:"id"`
	OrderID   gocql.UUID      `json:"order_id"`
	ProductID gocql.UUID      `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderItemDetail is an item joined with the product fields listings show.
type OrderItemDetail struct {
	OrderItem
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image,omitempty"`
}

type OrderWithItems struct {
	Order
	Items []OrderItemDetail `json:"items"`
}

type OrderStats struct {
	TotalOrders   int                 `json:"total_orders"`
	PendingOrders int                 `json:"pending_orders"`
	TotalRevenue  decimal.Decimal     `json:"total_revenue"`
	ByStatus      map[OrderStatus]int `json:"by_status"`
}
