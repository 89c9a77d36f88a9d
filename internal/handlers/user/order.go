package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"souq_back_end/internal/auth"
	"souq_back_end/internal/handlers"
	"souq_back_end/internal/models"
)

// OrderLister reads the orders of one customer.
type OrderLister interface {
	ListByUser(ctx context.Context, userID string) ([]models.OrderWithItems, error)
}

type OrderHandler struct {
	orders OrderLister
	logger *zap.Logger
}

func NewOrderHandler(orders OrderLister, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// GET /api/orders/mine returns the caller's orders, newest first.
func (h *OrderHandler) Mine(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	orders, err := h.orders.ListByUser(c.Request.Context(), id.UserID)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "")
		return
	}
	if orders == nil {
		orders = []models.OrderWithItems{}
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
