package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"souq_back_end/internal/auth"
	"souq_back_end/internal/cache"
	"souq_back_end/internal/handlers/admin"
	"souq_back_end/internal/handlers/order"
	"souq_back_end/internal/handlers/product"
	"souq_back_end/internal/handlers/user"
	"souq_back_end/internal/middleware"
	"souq_back_end/internal/models"
)

// Deps is everything the router needs, built once in main.
type Deps struct {
	Logger      *zap.Logger
	Metrics     *middleware.Metrics
	CORSOrigins []string
	Secure      bool

	Issuer    *auth.TokenIssuer
	Blacklist middleware.RevocationChecker
	Admins    *middleware.AdminSessions
	Auditor   *middleware.Auditor

	LoginLimiter    *cache.Limiter
	CartLimiter     *cache.Limiter
	CheckoutLimiter *cache.Limiter

	Products     *product.Handler
	Cart         *user.CartHandler
	CartSync     *user.CartSync
	Auth         *user.AuthHandler
	MyOrders     *user.OrderHandler
	Orders       *order.Handler
	AdminSession *admin.SessionHandler
	Audit        *admin.AuditHandler
	Feed         *admin.OrderFeed
}

func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.CartHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.CartHeader, order.CartChangedHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// Register wires every route and middleware onto r.
func Register(r *gin.Engine, d Deps) {
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(d.Metrics.Middleware())
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", d.Metrics.Handler())

	api := r.Group("/api")
	api.Use(middleware.OptionalAuth(d.Issuer, d.Blacklist, d.Logger))

	// Catalog
	api.GET("/products", d.Products.List)
	api.GET("/products/search", d.Products.Search)
	api.GET("/products/:id", d.Products.Get)
	api.GET("/products/:id/media", d.Products.Media)
	api.GET("/delivery-zones", order.DeliveryZones)

	// Cart, keyed by the cart cookie for guests and customers alike
	cartLimit := middleware.RequestRateLimit(d.CartLimiter, middleware.ByCartID, "too many cart updates, slow down", d.Logger)
	cartGroup := api.Group("/cart", middleware.CartSession(d.Secure))
	{
		cartGroup.GET("", d.Cart.Get)
		cartGroup.GET("/ws", d.CartSync.Serve)
		cartGroup.POST("/items", cartLimit, d.Cart.AddItem)
		cartGroup.PUT("/items/:productId", cartLimit, d.Cart.UpdateItem)
		cartGroup.DELETE("/items/:productId", cartLimit, d.Cart.RemoveItem)
		cartGroup.DELETE("", cartLimit, d.Cart.Clear)
	}

	checkoutLimit := middleware.RequestRateLimit(d.CheckoutLimiter, middleware.ByClientIP, "too many orders, try again later", d.Logger)
	checkout := api.Group("/checkout", middleware.CartSession(d.Secure))
	{
		checkout.POST("", checkoutLimit, d.Orders.Submit)
		checkout.GET("/quote", d.Orders.Quote)
	}

	api.GET("/orders/mine", middleware.AuthRequired(), d.MyOrders.Mine)
	api.GET("/orders/:id/receipt.png", d.Orders.Receipt)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", d.Auth.Signup)
		authGroup.POST("/login", middleware.LoginRateLimit(d.LoginLimiter, "email", d.Logger), d.Auth.Login)
		authGroup.POST("/logout", middleware.AuthRequired(), d.Auth.Logout)
		authGroup.GET("/me", middleware.AuthRequired(), d.Auth.Me)
	}

	registerAdmin(api.Group("/admin"), d)
}

func registerAdmin(g *gin.RouterGroup, d Deps) {
	g.POST("/login", middleware.LoginRateLimit(d.LoginLimiter, "username", d.Logger), d.AdminSession.Login)

	protected := g.Group("", d.Admins.RequireAdmin())
	protected.POST("/logout", d.AdminSession.Logout)

	audit := d.Auditor.Action
	products := protected.Group("/products")
	{
		products.POST("", audit(models.ActionProductCreate, models.ResourceProduct), d.Products.Create)
		products.PUT("/:id", audit(models.ActionProductUpdate, models.ResourceProduct), d.Products.Update)
		products.DELETE("/:id", audit(models.ActionProductDelete, models.ResourceProduct), d.Products.Delete)
		products.POST("/:id/media", audit(models.ActionMediaUpload, models.ResourceMedia), d.Products.UploadMedia)
		products.DELETE("/:id/media/:mediaId", audit(models.ActionMediaDelete, models.ResourceMedia), d.Products.DeleteMedia)
	}

	orders := protected.Group("/orders")
	{
		orders.GET("", d.Orders.List)
		orders.GET("/stats", d.Orders.Stats)
		orders.GET("/feed", d.Feed.Serve)
		orders.PUT("/:id/status", audit(models.ActionOrderUpdate, models.ResourceOrder), d.Orders.UpdateStatus)
		orders.DELETE("/:id", audit(models.ActionOrderDelete, models.ResourceOrder), d.Orders.Delete)
	}

	protected.GET("/audit", d.Audit.List)
}
