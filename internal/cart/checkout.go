package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"souq_back_end/internal/auth"
	"souq_back_end/internal/models"
)

// Customer-facing checkout messages.
const (
	// MsgUnexpected is shown when a store call fails and no better message exists.
	MsgUnexpected       = "حدث خطأ غير متوقع"
	MsgEmptyCart        = "السلة فارغة"
	MsgMissingFields    = "يرجى ملء جميع الحقول المطلوبة"
	MsgInvalidBody      = "بيانات الطلب غير صالحة"
	MsgCartChanged      = "تغيرت بعض المنتجات في سلتك، يرجى مراجعتها"
	MsgCheckoutInFlight = "طلبك قيد المعالجة"
)

// CustomerInfo is the checkout form.
type CustomerInfo struct {
	FullName     string `json:"fullName" validate:"required"`
	PhoneNumber  string `json:"phoneNumber" validate:"required"`
	Address      string `json:"address" validate:"required"`
	Notes        string `json:"notes"`
	DeliveryZone string `json:"deliveryZone"`
}

func (ci *CustomerInfo) normalize() {
	ci.FullName = strings.TrimSpace(ci.FullName)
	ci.PhoneNumber = strings.TrimSpace(ci.PhoneNumber)
	ci.Address = strings.TrimSpace(ci.Address)
	ci.Notes = strings.TrimSpace(ci.Notes)
	ci.DeliveryZone = strings.TrimSpace(ci.DeliveryZone)
}

// Result is what the customer sees after submitting. Outcome is one of the
// Outcome* values and never leaves the server.
type Result struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Error   string `json:"error,omitempty"`
	Outcome string `json:"-"`
}

// Quote is the price breakdown for a cart sent to a zone.
type Quote struct {
	Subtotal  decimal.Decimal      `json:"subtotal"`
	Surcharge decimal.Decimal      `json:"surcharge"`
	Total     decimal.Decimal      `json:"total"`
	Zone      *models.DeliveryZone `json:"zone,omitempty"`
}

// QuoteFor prices c for zoneID. Unknown or empty zones cost nothing.
func QuoteFor(c *Cart, zoneID string) Quote {
	q := Quote{Subtotal: c.TotalPrice(), Surcharge: decimal.Zero}
	if zone, ok := models.LookupZone(zoneID); ok {
		q.Surcharge = zone.Surcharge
		q.Zone = &zone
	}
	q.Total = q.Subtotal.Add(q.Surcharge)
	return q
}

// OrderWriter persists orders for checkout.
type OrderWriter interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	DeleteOrder(ctx context.Context, orderID gocql.UUID) error
}

// OrderListener is told about every order that was fully written.
type OrderListener interface {
	OrderPlaced(ctx context.Context, order models.Order, items []models.OrderItem)
}

type OrderListenerFunc func(ctx context.Context, order models.Order, items []models.OrderItem)

func (f OrderListenerFunc) OrderPlaced(ctx context.Context, order models.Order, items []models.OrderItem) {
	f(ctx, order, items)
}

// SubmitObserver counts submissions by outcome.
type SubmitObserver interface {
	ObserveSubmit(outcome string)
}

const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid"
	OutcomeOrderFailed = "order_failed"
	OutcomeItemsFailed = "items_failed"
	OutcomeCartChanged = "cart_changed"
	OutcomeInFlight    = "in_flight"
)

type Checkout struct {
	orders    OrderWriter
	logger    *zap.Logger
	validate  *validator.Validate
	listeners []OrderListener
	observer  SubmitObserver
	now       func() time.Time
}

type Option func(*Checkout)

func WithListener(l OrderListener) Option {
	return func(c *Checkout) { c.listeners = append(c.listeners, l) }
}

func WithObserver(o SubmitObserver) Option {
	return func(c *Checkout) { c.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(c *Checkout) { c.now = now }
}

func NewCheckout(orders OrderWriter, logger *zap.Logger, opts ...Option) *Checkout {
	c := &Checkout{
		orders:   orders,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit turns the cart into a pending order plus one item per line. On
// success the cart is cleared. If the items cannot be written the order is
// deleted again and the submission fails.
func (co *Checkout) Submit(ctx context.Context, c *Cart, info CustomerInfo) Result {
	info.normalize()

	if c.IsEmpty() {
		return co.fail(OutcomeInvalid, MsgEmptyCart)
	}
	if msg := co.validateInfo(info); msg != "" {
		return co.fail(OutcomeInvalid, msg)
	}

	quote := QuoteFor(c, info.DeliveryZone)
	zoneLabel := ""
	if quote.Zone != nil {
		zoneLabel = quote.Zone.Label
	} else {
		// Candidate for validation: the order goes through without a surcharge.
		co.logger.Warn("delivery zone not found, no surcharge applied",
			zap.String("zone", info.DeliveryZone),
		)
	}

	now := co.now().UTC()
	order := models.Order{
		ID:           gocql.UUID(uuid.New()),
		FullName:     info.FullName,
		PhoneNumber:  info.PhoneNumber,
		Address:      fmt.Sprintf("%s - %s", zoneLabel, info.Address),
		Notes:        info.Notes,
		DeliveryZone: info.DeliveryZone,
		TotalPrice:   quote.Total,
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if id, ok := auth.IdentityFrom(ctx); ok {
		userID := id.UserID
		order.UserID = &userID
	}

	if err := co.orders.CreateOrder(ctx, &order); err != nil {
		co.logger.Error("create order failed", zap.Error(err))
		return co.fail(OutcomeOrderFailed, MsgUnexpected)
	}

	lines := c.Lines()
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.OrderItem{
			ID:        gocql.TimeUUID(),
			OrderID:   order.ID,
			ProductID: l.Product.ID,
			Quantity:  l.Quantity,
			Price:     l.Product.Price,
		})
	}

	if err := co.orders.CreateOrderItems(ctx, &order, items); err != nil {
		co.logger.Error("create order items failed, removing order",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		if derr := co.orders.DeleteOrder(ctx, order.ID); derr != nil {
			co.logger.Error("compensating order delete failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(derr),
			)
		}
		return co.fail(OutcomeItemsFailed, MsgUnexpected)
	}

	c.Clear()

	co.logger.Info("order submitted",
		zap.String("order_id", order.ID.String()),
		zap.String("total", order.TotalPrice.StringFixed(2)),
		zap.Int("items", len(items)),
	)
	co.observe(OutcomeSuccess)

	for _, l := range co.listeners {
		l.OrderPlaced(ctx, order, items)
	}

	return Result{Success: true, OrderID: order.ID.String(), Outcome: OutcomeSuccess}
}

func (co *Checkout) validateInfo(info CustomerInfo) string {
	err := co.validate.Struct(info)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fieldName(fe.Field()))
	}
	return MsgMissingFields + ": " + strings.Join(missing, ", ")
}

func fieldName(field string) string {
	switch field {
	case "FullName":
		return "fullName"
	case "PhoneNumber":
		return "phoneNumber"
	case "Address":
		return "address"
	}
	return field
}

func (co *Checkout) fail(outcome, msg string) Result {
	co.observe(outcome)
	return Result{Success: false, Error: msg, Outcome: outcome}
}

func (co *Checkout) observe(outcome string) {
	if co.observer != nil {
		co.observer.ObserveSubmit(outcome)
	}
}
