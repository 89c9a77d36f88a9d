package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	CartHeader = "X-Cart-ID"
	CartCookie = "cart_id"

	cartIDKey     = "cart_id"
	cartCookieAge = 30 * 24 * 60 * 60
)

// CartSession resolves the cart of the caller from the X-Cart-ID header or
// the cart_id cookie and mints a new id when neither holds a valid one.
func CartSession(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CartHeader)
		if _, err := uuid.Parse(id); err != nil {
			id, _ = c.Cookie(CartCookie)
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CartCookie, id, cartCookieAge, "/", "", secure, true)
		c.Header(CartHeader, id)
		c.Set(cartIDKey, id)
		c.Next()
	}
}

// CartID returns the cart id resolved by CartSession.
func CartID(c *gin.Context) string {
	return c.GetString(cartIDKey)
}
