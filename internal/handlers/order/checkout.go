package order

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"souq_back_end/internal/cart"
	"souq_back_end/internal/handlers"
	"souq_back_end/internal/middleware"
	"souq_back_end/internal/models"
	"souq_back_end/internal/services"
)

// CartStore persists carts by cart id.
type CartStore interface {
	Load(ctx context.Context, cartID string) (*cart.Cart, error)
	Save(ctx context.Context, cartID string, c *cart.Cart) error
}

// Submitter turns a cart into an order.
type Submitter interface {
	Submit(ctx context.Context, c *cart.Cart, info cart.CustomerInfo) cart.Result
}

// Store is the order persistence used by the shop and the back office.
type Store interface {
	Get(ctx context.Context, id gocql.UUID) (*models.OrderWithItems, error)
	ListAll(ctx context.Context) ([]models.OrderWithItems, error)
	UpdateStatus(ctx context.Context, id gocql.UUID, status models.OrderStatus) (*models.Order, error)
	DeleteOrder(ctx context.Context, id gocql.UUID) error
	Stats(ctx context.Context) (*models.OrderStats, error)
}

// EventPublisher announces order changes to the admin feed.
type EventPublisher interface {
	Publish(ctx context.Context, ev services.OrderEvent) error
}

// CartChangedHeader is set on a quote whose cart lost or reduced lines
// while being repriced.
const CartChangedHeader = "X-Cart-Changed"

// Locker serializes checkouts of the same cart.
type Locker interface {
	Acquire(ctx context.Context, subject string) (release func(), ok bool, err error)
}

type Handler struct {
	carts    CartStore
	products cart.ProductSource
	checkout Submitter
	orders   Store
	events   EventPublisher
	locks    Locker
	baseURL  string
	logger   *zap.Logger
}

func NewHandler(carts CartStore, products cart.ProductSource, checkout Submitter, orders Store, events EventPublisher, locks Locker, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		carts:    carts,
		products: products,
		checkout: checkout,
		orders:   orders,
		events:   events,
		locks:    locks,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// submitStatus maps a checkout outcome to its HTTP status.
func submitStatus(outcome string) int {
	switch outcome {
	case cart.OutcomeSuccess:
		return http.StatusCreated
	case cart.OutcomeInvalid:
		return http.StatusBadRequest
	case cart.OutcomeCartChanged, cart.OutcomeInFlight:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, outcome, msg string) {
	c.JSON(submitStatus(outcome), cart.Result{Error: msg, Outcome: outcome})
}

// loadCart reads the cart and reprices it from the catalog. A changed cart
// is saved back before returning.
func (h *Handler) loadCart(c *gin.Context) (*cart.Cart, cart.Changes, bool) {
	ctx := c.Request.Context()
	cartID := middleware.CartID(c)

	crt, err := h.carts.Load(ctx, cartID)
	if err != nil {
		h.logger.Error("❌ cart load failed", zap.String("cart_id", cartID), zap.Error(err))
		h.fail(c, cart.OutcomeOrderFailed, cart.MsgUnexpected)
		return nil, cart.Changes{}, false
	}

	changes, err := crt.Refresh(ctx, h.products)
	if err != nil {
		h.logger.Error("❌ cart refresh failed", zap.String("cart_id", cartID), zap.Error(err))
		h.fail(c, cart.OutcomeOrderFailed, cart.MsgUnexpected)
		return nil, cart.Changes{}, false
	}
	if changes.Any() {
		h.logger.Info("cart changed since last visit",
			zap.String("cart_id", cartID),
			zap.Int("removed", len(changes.Removed)),
			zap.Int("clamped", len(changes.Clamped)),
		)
		if err := h.carts.Save(ctx, cartID, crt); err != nil {
			h.logger.Warn("⚠️ refreshed cart not saved", zap.String("cart_id", cartID), zap.Error(err))
		}
	}
	return crt, changes, true
}

// POST /api/checkout
func (h *Handler) Submit(c *gin.Context) {
	var info cart.CustomerInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		h.fail(c, cart.OutcomeInvalid, cart.MsgInvalidBody)
		return
	}

	ctx := c.Request.Context()
	cartID := middleware.CartID(c)

	release, ok, err := h.locks.Acquire(ctx, cartID)
	if err != nil {
		h.logger.Error("❌ checkout lock failed", zap.String("cart_id", cartID), zap.Error(err))
		h.fail(c, cart.OutcomeOrderFailed, cart.MsgUnexpected)
		return
	}
	if !ok {
		h.fail(c, cart.OutcomeInFlight, cart.MsgCheckoutInFlight)
		return
	}
	defer release()

	crt, changes, ok := h.loadCart(c)
	if !ok {
		return
	}
	// Removed or reduced lines change what the customer agreed to.
	if changes.Any() {
		h.fail(c, cart.OutcomeCartChanged, cart.MsgCartChanged)
		return
	}

	res := h.checkout.Submit(ctx, crt, info)
	if !res.Success {
		c.JSON(submitStatus(res.Outcome), res)
		return
	}

	// The order exists at this point, a stale cart must not fail the request.
	if err := h.carts.Save(ctx, cartID, crt); err != nil {
		h.logger.Warn("⚠️ cart not cleared after checkout",
			zap.String("cart_id", cartID),
			zap.String("order_id", res.OrderID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusCreated, res)
}

// GET /api/checkout/quote?zone=
func (h *Handler) Quote(c *gin.Context) {
	crt, changes, ok := h.loadCart(c)
	if !ok {
		return
	}
	if changes.Any() {
		c.Header(CartChangedHeader, "true")
	}
	c.JSON(http.StatusOK, cart.QuoteFor(crt, c.Query("zone")))
}

// GET /api/orders/:id/receipt.png
func (h *Handler) Receipt(c *gin.Context) {
	id, ok := handlers.ParseUUID(c, "id")
	if !ok {
		return
	}

	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "order not found")
		return
	}

	png, err := services.ReceiptQR(h.baseURL, o.ID.String(), o.TotalPrice, 256)
	if err != nil {
		h.logger.Error("❌ receipt rendering failed", zap.String("order_id", o.ID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
