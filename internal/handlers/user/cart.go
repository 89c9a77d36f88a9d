package user

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
)

// CartStore persists carts by cart id.
type CartStore interface {
	Load(ctx context.Context, cartID string) (*cart.Cart, error)
	Save(ctx context.Context, cartID string, c *cart.Cart) error
	Delete(ctx context.Context, cartID string) error
}

// ProductGetter reads the current product for stock and price.
type ProductGetter interface {
	Get(ctx context.Context, id gocql.UUID) (*models.Product, error)
}

type CartHandler struct {
	carts    CartStore
	products ProductGetter
	logger   *zap.Logger
}

func NewCartHandler(carts CartStore, products ProductGetter, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, products: products, logger: logger}
}

type addItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gte=1"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" binding:"gte=0"`
}

func (h *CartHandler) load(c *gin.Context) (*cart.Cart, bool) {
	crt, err := h.carts.Load(c.Request.Context(), middleware.CartID(c))
	if err != nil {
		h.logger.Error("❌ cart load failed", zap.String("cart_id", middleware.CartID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return nil, false
	}
	return crt, true
}

func (h *CartHandler) save(c *gin.Context, crt *cart.Cart) {
	if err := h.carts.Save(c.Request.Context(), middleware.CartID(c), crt); err != nil {
		h.logger.Error("❌ cart save failed", zap.String("cart_id", middleware.CartID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, crt)
}

// GET /api/cart
func (h *CartHandler) Get(c *gin.Context) {
	crt, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, crt)
}

// POST /api/cart/items adds a product, never past the units in stock.
func (h *CartHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	productID, err := gocql.ParseUUID(req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid productId"})
		return
	}

	product, err := h.products.Get(c.Request.Context(), productID)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "product not found")
		return
	}
	if !product.InStock() {
		c.JSON(http.StatusConflict, gin.H{"error": "product out of stock"})
		return
	}

	crt, ok := h.load(c)
	if !ok {
		return
	}

	inCart := 0
	if line, ok := crt.Line(productID); ok {
		inCart = line.Quantity
	}
	qty := min(req.Quantity, product.Quantity-inCart)
	if qty <= 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "no more stock for this product"})
		return
	}

	crt.Add(*product, qty)
	h.save(c, crt)
}

// PUT /api/cart/items/:productId sets a line quantity; zero removes it.
func (h *CartHandler) UpdateItem(c *gin.Context) {
	productID, ok := handlers.ParseUUID(c, "productId")
	if !ok {
		return
	}

	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	crt, ok := h.load(c)
	if !ok {
		return
	}
	if _, ok := crt.Line(productID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not in cart"})
		return
	}

	qty := req.Quantity
	if qty > 0 {
		product, err := h.products.Get(c.Request.Context(), productID)
		if err != nil {
			handlers.StoreError(c, h.logger, err, "product not found")
			return
		}
		qty = min(qty, product.Quantity)
	}

	crt.SetQuantity(productID, qty)
	h.save(c, crt)
}

// DELETE /api/cart/items/:productId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	productID, ok := handlers.ParseUUID(c, "productId")
	if !ok {
		return
	}

	crt, ok := h.load(c)
	if !ok {
		return
	}
	crt.Remove(productID)
	h.save(c, crt)
}

// DELETE /api/cart
func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.carts.Delete(c.Request.Context(), middleware.CartID(c)); err != nil {
		h.logger.Error("❌ cart clear failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, cart.New())
}
