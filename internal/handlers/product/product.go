package product

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"souq_back_end/internal/handlers"
	"souq_back_end/internal/models"
	"souq_back_end/internal/services"
)

// Store is the product persistence the handlers use.
type Store interface {
	Get(ctx context.Context, id gocql.UUID) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, id gocql.UUID, patch models.ProductPatch) (*models.Product, error)
	Delete(ctx context.Context, id gocql.UUID) error
	ListMedia(ctx context.Context, productID gocql.UUID) ([]models.ProductMedia, error)
	GetMedia(ctx context.Context, productID, mediaID gocql.UUID) (*models.ProductMedia, error)
	AddMedia(ctx context.Context, m *models.ProductMedia) error
	DeleteMedia(ctx context.Context, productID, mediaID gocql.UUID) error
}

// Catalog serves the cached product list.
type Catalog interface {
	List(ctx context.Context) ([]models.Product, error)
	Invalidate(ctx context.Context)
}

// Searcher is the full-text index over the catalog.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
	IndexProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, productID string) error
}

// BlobStore keeps the uploaded media files.
type BlobStore interface {
	Upload(ctx context.Context, productID, filename string, r io.Reader, size int64, contentType string) (string, string, error)
	Delete(ctx context.Context, objectPath string) error
}

type Handler struct {
	store   Store
	catalog Catalog
	search  Searcher
	blobs   BlobStore
	logger  *zap.Logger

	indexTimeout time.Duration
}

func NewHandler(store Store, catalog Catalog, search Searcher, blobs BlobStore, logger *zap.Logger) *Handler {
	return &Handler{
		store:        store,
		catalog:      catalog,
		search:       search,
		blobs:        blobs,
		logger:       logger,
		indexTimeout: 10 * time.Second,
	}
}

// GET /api/products
func (h *Handler) List(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context())
	if err != nil {
		handlers.StoreError(c, h.logger, err, "")
		return
	}
	c.JSON(http.StatusOK, products)
}

// GET /api/products/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := handlers.ParseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "product not found")
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /api/products/:id/media
func (h *Handler) Media(c *gin.Context) {
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
	if media == nil {
		media = []models.ProductMedia{}
	}
	c.JSON(http.StatusOK, media)
}

// GET /api/products/search?q=&min_price=&max_price=&sort=
func (h *Handler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	filters, err := parseSearchFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	products, err := h.catalog.List(ctx)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "")
		return
	}

	if query == "" {
		c.JSON(http.StatusOK, gin.H{"results": truncate(filters.apply(products), limit), "source": "catalog"})
		return
	}

	ids, err := h.search.Search(ctx, query, limit)
	if err != nil {
		if !errors.Is(err, services.ErrSearchUnavailable) {
			h.logger.Warn("search failed, filtering catalog", zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{
			"results": truncate(filters.apply(services.FilterProducts(products, query)), limit),
			"source":  "catalog",
		})
		return
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID.String()] = p
	}
	results := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			results = append(results, p)
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": filters.apply(results), "source": "search"})
}

func truncate(products []models.Product, limit int) []models.Product {
	if products == nil {
		return []models.Product{}
	}
	if len(products) > limit {
		return products[:limit]
	}
	return products
}

// reindex pushes p to the search index in the background.
func (h *Handler) reindex(p models.Product) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.indexTimeout)
		defer cancel()
		if err := h.search.IndexProduct(ctx, p); err != nil {
			h.logger.Warn("⚠️ product indexing failed", zap.String("product_id", p.ID.String()), zap.Error(err))
		}
	}()
}

func (h *Handler) unindex(productID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.indexTimeout)
		defer cancel()
		if err := h.search.DeleteProduct(ctx, productID); err != nil {
			h.logger.Warn("⚠️ product unindexing failed", zap.String("product_id", productID), zap.Error(err))
		}
	}()
}
