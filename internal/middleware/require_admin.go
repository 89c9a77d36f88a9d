package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"souq_back_end/internal/auth"
)

const (
	adminSessionName = "souq_admin"
	adminKey         = "admin"
)

// AdminSessions guards the back office with a signed cookie session. The
// admin credentials come from configuration.
type AdminSessions struct {
	store        sessions.Store
	username     string
	passwordHash string
}

func NewAdminSessions(secret string, secure bool, username, passwordHash string) *AdminSessions {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   8 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &AdminSessions{store: store, username: username, passwordHash: passwordHash}
}

// Authenticate checks the admin username and password.
func (a *AdminSessions) Authenticate(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK, err := auth.VerifyPassword(password, a.passwordHash)
	return userOK && passOK && err == nil
}

// Login marks the browser session as admin.
func (a *AdminSessions) Login(c *gin.Context) error {
	session, _ := a.store.Get(c.Request, adminSessionName)
	session.Values[adminKey] = a.username
	return session.Save(c.Request, c.Writer)
}

// Logout expires the admin session cookie.
func (a *AdminSessions) Logout(c *gin.Context) error {
	session, _ := a.store.Get(c.Request, adminSessionName)
	delete(session.Values, adminKey)
	session.Options.MaxAge = -1
	return session.Save(c.Request, c.Writer)
}

// RequireAdmin only lets requests with a valid admin session through.
func (a *AdminSessions) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := a.store.Get(c.Request, adminSessionName)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access only"})
			return
		}

		name, ok := session.Values[adminKey].(string)
		if !ok || name != a.username {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access only"})
			return
		}

		c.Set(adminKey, name)
		c.Next()
	}
}

// AdminName returns the admin behind the request, if any.
func AdminName(c *gin.Context) string {
	return c.GetString(adminKey)
}
