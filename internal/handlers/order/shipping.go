package order

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"souq_back_end/internal/models"
)

// GET /api/delivery-zones
func DeliveryZones(c *gin.Context) {
	c.JSON(http.StatusOK, models.DeliveryZones())
}
