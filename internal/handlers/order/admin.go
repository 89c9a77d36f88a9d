package order

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"souq_back_end/internal/handlers"
	"souq_back_end/internal/middleware"
	"souq_back_end/internal/models"
	"souq_back_end/internal/services"
)

// GET /api/admin/orders[?status=]
func (h *Handler) List(c *gin.Context) {
	var filter models.OrderStatus
	if raw := c.Query("status"); raw != "" {
		s, err := models.ParseOrderStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "valid_statuses": models.OrderStatuses()})
			return
		}
		filter = s
	}

	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		handlers.StoreError(c, h.logger, err, "")
		return
	}

	out := make([]models.OrderWithItems, 0, len(orders))
	for _, o := range orders {
		if filter == "" || o.Status == filter {
			out = append(out, o)
		}
	}
	c.JSON(http.StatusOK, gin.H{"orders": out, "total": len(out)})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PUT /api/admin/orders/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handlers.ParseUUID(c, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "valid_statuses": models.OrderStatuses()})
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "order not found")
		return
	}

	h.publish(c.Request.Context(), services.OrderEvent{
		Type:    services.OrderStatusChanged,
		OrderID: o.ID.String(),
		Status:  o.Status,
		Order:   o,
	})
	middleware.SetAuditTarget(c, o.ID.String(), string(o.Status))

	c.JSON(http.StatusOK, o)
}

// DELETE /api/admin/orders/:id removes the order with its items.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := handlers.ParseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		handlers.StoreError(c, h.logger, err, "order not found")
		return
	}

	h.publish(c.Request.Context(), services.OrderEvent{
		Type:    services.OrderDeleted,
		OrderID: id.String(),
	})
	c.Status(http.StatusNoContent)
}

func (h *Handler) publish(ctx context.Context, ev services.OrderEvent) {
	if err := h.events.Publish(ctx, ev); err != nil {
		h.logger.Warn("publish order event failed", zap.String("order_id", ev.OrderID), zap.Error(err))
	}
}
