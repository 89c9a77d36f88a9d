package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"souq_back_end/internal/models"
)

// OrderEventsChannel carries order changes to the admin feed.
const OrderEventsChannel = "orders:events"

const (
	OrderCreated       = "order_created"
	OrderStatusChanged = "order_status_changed"
	OrderDeleted       = "order_deleted"
)

// OrderEvent is the payload published on OrderEventsChannel.
type OrderEvent struct {
	Type    string             `json:"type"`
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status,omitempty"`
	Order   *models.Order      `json:"order,omitempty"`
	Items   []models.OrderItem `json:"items,omitempty"`
	At      time.Time          `json:"at"`
}

// OrderEvents publishes order changes over Redis pub/sub.
type OrderEvents struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewOrderEvents(rdb *redis.Client, logger *zap.Logger) *OrderEvents {
	return &OrderEvents{rdb: rdb, logger: logger}
}

func (oe *OrderEvents) Publish(ctx context.Context, ev OrderEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return oe.rdb.Publish(ctx, OrderEventsChannel, payload).Err()
}

// OrderPlaced announces a new order. Publish errors are only logged.
func (oe *OrderEvents) OrderPlaced(ctx context.Context, order models.Order, items []models.OrderItem) {
	ev := OrderEvent{
		Type:    OrderCreated,
		OrderID: order.ID.String(),
		Status:  order.Status,
		Order:   &order,
		Items:   items,
	}
	if err := oe.Publish(ctx, ev); err != nil {
		oe.logger.Warn("publish order event failed", zap.String("order_id", ev.OrderID), zap.Error(err))
	}
}

// Subscribe opens a subscription to the order feed. The caller closes it.
func (oe *OrderEvents) Subscribe(ctx context.Context) *redis.PubSub {
	return oe.rdb.Subscribe(ctx, OrderEventsChannel)
}
