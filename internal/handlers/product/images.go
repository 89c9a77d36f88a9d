package product

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"souq_back_end/internal/handlers"
	"souq_back_end/internal/middleware"
	"souq_back_end/internal/models"
	"souq_back_end/internal/services"
)

// MaxUploadSize bounds one media upload.
const MaxUploadSize = 50 << 20

// POST /api/admin/products/:id/media (multipart field "file")
func (h *Handler) UploadMedia(c *gin.Context) {
	id, ok := handlers.ParseUUID(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	mediaType, ok := services.MediaTypeOf(contentType)
	if !ok {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only images and videos are accepted"})
		return
	}

	ctx := c.Request.Context()
	product, err := h.store.Get(ctx, id)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "product not found")
		return
	}

	existing, err := h.store.ListMedia(ctx, id)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "")
		return
	}

	objectPath, url, err := h.blobs.Upload(ctx, id.String(), header.Filename, file, header.Size, contentType)
	if err != nil {
		h.logger.Error("❌ media upload failed", zap.String("product_id", id.String()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}

	media := models.ProductMedia{
		ID:        gocql.TimeUUID(),
		ProductID: id,
		URL:       url,
		Path:      objectPath,
		MediaType: mediaType,
		Position:  len(existing),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.AddMedia(ctx, &media); err != nil {
		if delErr := h.blobs.Delete(ctx, objectPath); delErr != nil {
			h.logger.Warn("⚠️ orphan media file", zap.String("path", objectPath), zap.Error(delErr))
		}
		handlers.StoreError(c, h.logger, err, "")
		return
	}

	// The first image becomes the product thumbnail.
	if product.Image == "" && mediaType == models.MediaImage {
		if updated, err := h.store.Update(ctx, id, models.ProductPatch{Image: &url}); err != nil {
			h.logger.Warn("⚠️ thumbnail not set", zap.String("product_id", id.String()), zap.Error(err))
		} else {
			h.reindex(*updated)
		}
		h.catalog.Invalidate(ctx)
	}

	middleware.SetAuditTarget(c, media.ID.String(), objectPath)
	c.JSON(http.StatusCreated, media)
}

// DELETE /api/admin/products/:id/media/:mediaId
func (h *Handler) DeleteMedia(c *gin.Context) {
	productID, ok := handlers.ParseUUID(c, "id")
	if !ok {
		return
	}
	mediaID, ok := handlers.ParseUUID(c, "mediaId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	media, err := h.store.GetMedia(ctx, productID, mediaID)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "media not found")
		return
	}

	if err := h.store.DeleteMedia(ctx, productID, mediaID); err != nil {
		handlers.StoreError(c, h.logger, err, "media not found")
		return
	}

	if err := h.blobs.Delete(ctx, media.Path); err != nil {
		h.logger.Warn("⚠️ media file not removed", zap.String("path", media.Path), zap.Error(err))
	}

	middleware.SetAuditTarget(c, mediaID.String(), "")
	c.Status(http.StatusNoContent)
}
