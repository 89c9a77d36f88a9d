package product

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"souq_back_end/internal/handlers"
	"souq_back_end/internal/middleware"
	"souq_back_end/internal/models"
)

type createRequest struct {
	Name             string          `json:"name" binding:"required"`
	Price            decimal.Decimal `json:"price"`
	Image            string          `json:"image"`
	Quantity         int             `json:"quantity" binding:"gte=0"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"short_description"`
	LongDescription  string          `json:"long_description"`
}

type updateRequest struct {
	Name             *string          `json:"name"`
	Price            *decimal.Decimal `json:"price"`
	Image            *string          `json:"image"`
	Quantity         *int             `json:"quantity" binding:"omitempty,gte=0"`
	Description      *string          `json:"description"`
	ShortDescription *string          `json:"short_description"`
	LongDescription  *string          `json:"long_description"`
}

func (r updateRequest) patch() models.ProductPatch {
	return models.ProductPatch{
		Name:             r.Name,
		Price:            r.Price,
		Image:            r.Image,
		Quantity:         r.Quantity,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		LongDescription:  r.LongDescription,
	}
}

// POST /api/admin/products
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
		return
	}

	now := time.Now().UTC()
	p := models.Product{
		ID:               gocql.UUID(uuid.New()),
		Name:             strings.TrimSpace(req.Name),
		Price:            req.Price.Round(2),
		Image:            req.Image,
		Quantity:         req.Quantity,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		LongDescription:  req.LongDescription,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	ctx := c.Request.Context()
	if err := h.store.Create(ctx, &p); err != nil {
		handlers.StoreError(c, h.logger, err, "")
		return
	}

	h.catalog.Invalidate(ctx)
	h.reindex(p)
	middleware.SetAuditTarget(c, p.ID.String(), p.Name)

	h.logger.Info("✅ product created", zap.String("product_id", p.ID.String()))
	c.JSON(http.StatusCreated, p)
}

// PUT /api/admin/products/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := handlers.ParseUUID(c, "id")
	if !ok {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
			return
		}
		rounded := req.Price.Round(2)
		req.Price = &rounded
	}

	ctx := c.Request.Context()
	p, err := h.store.Update(ctx, id, req.patch())
	if err != nil {
		handlers.StoreError(c, h.logger, err, "product not found")
		return
	}

	h.catalog.Invalidate(ctx)
	h.reindex(*p)
	middleware.SetAuditTarget(c, p.ID.String(), p.Name)

	c.JSON(http.StatusOK, p)
}

// DELETE /api/admin/products/:id removes the product, its media rows and
// the stored files.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := handlers.ParseUUID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.Get(ctx, id); err != nil {
		handlers.StoreError(c, h.logger, err, "product not found")
		return
	}

	media, err := h.store.ListMedia(ctx, id)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "")
		return
	}

	if err := h.store.Delete(ctx, id); err != nil {
		handlers.StoreError(c, h.logger, err, "product not found")
		return
	}

	for _, m := range media {
		if err := h.blobs.Delete(ctx, m.Path); err != nil {
			h.logger.Warn("⚠️ media file not removed", zap.String("path", m.Path), zap.Error(err))
		}
	}

	h.catalog.Invalidate(ctx)
	h.unindex(id.String())

	h.logger.Info("🗑️ product deleted", zap.String("product_id", id.String()), zap.Int("media", len(media)))
	c.Status(http.StatusNoContent)
}
