package order

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"souq_back_end/internal/handlers"
)

// GET /api/admin/orders/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.orders.Stats(c.Request.Context())
	if err != nil {
		handlers.StoreError(c, h.logger, err, "")
		return
	}
	c.JSON(http.StatusOK, stats)
}
