package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"souq_back_end/internal/auth"
	"souq_back_end/internal/cache"
	"souq_back_end/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type staticRevocations map[string]bool

func (s staticRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	return s[id], nil
}

func TestOptionalAuth(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	token, claims, err := issuer.Issue("user-1", "a@example.com")
	require.NoError(t, err)

	revoked := staticRevocations{}
	r := gin.New()
	r.Use(OptionalAuth(issuer, revoked, zap.NewNop()))
	r.GET("/me", func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"ok": ok, "user": id.UserID})
	})

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)

	w = do("Bearer " + token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"user-1"`)

	assert.Equal(t, http.StatusUnauthorized, do("Bearer nope").Code)
	assert.Equal(t, http.StatusUnauthorized, do("Token "+token).Code)

	revoked[claims.ID] = true
	assert.Equal(t, http.StatusUnauthorized, do("Bearer "+token).Code)
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.GET("/mine", AuthRequired(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mine", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminSessions(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	admin := NewAdminSessions("0123456789abcdef0123456789abcdef", false, "admin", hash)

	assert.True(t, admin.Authenticate("admin", "hunter2"))
	assert.False(t, admin.Authenticate("admin", "wrong"))
	assert.False(t, admin.Authenticate("root", "hunter2"))

	r := gin.New()
	r.POST("/login", func(c *gin.Context) {
		require.NoError(t, admin.Login(c))
		c.Status(http.StatusOK)
	})
	r.GET("/panel", admin.RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, AdminName(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panel", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/panel", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", w.Body.String())
}

func TestCartSession(t *testing.T) {
	r := gin.New()
	r.Use(CartSession(false))
	r.GET("/cart", func(c *gin.Context) { c.String(http.StatusOK, CartID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart", nil))
	minted := w.Body.String()
	assert.Len(t, minted, 36)
	assert.Equal(t, minted, w.Header().Get(CartHeader))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: CartCookie, Value: minted})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, minted, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(CartHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid", w.Body.String())
}

func TestLoginRateLimit(t *testing.T) {
	_, rdb := newRedis(t)
	limiter := cache.NewLimiter(rdb, "login", LoginMaxAttempts, time.Minute, LoginCooldown)

	r := gin.New()
	r.POST("/login", LoginRateLimit(limiter, "email", zap.NewNop()), func(c *gin.Context) {
		var body struct {
			Password string `json:"password"`
		}
		_ = c.ShouldBindJSON(&body)
		if body.Password != "right" {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.Status(http.StatusOK)
	})

	login := func(password string) int {
		req := httptest.NewRequest(http.MethodPost, "/login",
			strings.NewReader(`{"email":"A@example.com","password":"`+password+`"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < LoginMaxAttempts; i++ {
		assert.Equal(t, http.StatusUnauthorized, login("wrong"))
	}
	assert.Equal(t, http.StatusTooManyRequests, login("right"))
	assert.Equal(t, http.StatusTooManyRequests, login("right"))
}

func TestLoginRateLimit_SuccessResets(t *testing.T) {
	mr, rdb := newRedis(t)
	limiter := cache.NewLimiter(rdb, "login", LoginMaxAttempts, time.Minute, LoginCooldown)

	r := gin.New()
	r.POST("/login", LoginRateLimit(limiter, "email", zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	require.NoError(t, mr.Set("login_attempts:a@example.com", "3"))
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@example.com"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, mr.Exists("login_attempts:a@example.com"))
}

func TestLoginRateLimit_OversizedBody(t *testing.T) {
	_, rdb := newRedis(t)
	limiter := cache.NewLimiter(rdb, "login", LoginMaxAttempts, time.Minute, LoginCooldown)

	reached := false
	r := gin.New()
	r.POST("/login", LoginRateLimit(limiter, "email", zap.NewNop()), func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	padding := strings.Repeat("x", MaxLoginBody)
	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"a@example.com","password":"`+padding+`"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, reached)
}

func TestRequestRateLimit(t *testing.T) {
	_, rdb := newRedis(t)
	limiter := cache.NewLimiter(rdb, "checkout", 2, time.Minute, 0)

	r := gin.New()
	r.POST("/submit", RequestRateLimit(limiter, ByClientIP, "slow down", zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submit", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

type chanWriter chan models.AuditLog

func (c chanWriter) Insert(_ context.Context, entry models.AuditLog) error {
	c <- entry
	return nil
}

func receive(t *testing.T, ch chanWriter) models.AuditLog {
	t.Helper()
	select {
	case entry := <-ch:
		return entry
	case <-time.After(time.Second):
		t.Fatal("audit entry not written")
		return models.AuditLog{}
	}
}

func TestAuditorAction(t *testing.T) {
	writes := make(chanWriter, 2)
	auditor := NewAuditor(writes, zap.NewNop())

	r := gin.New()
	r.DELETE("/products/:id", auditor.Action(models.ActionProductDelete, models.ResourceProduct), func(c *gin.Context) {
		c.Set(adminKey, "admin")
		if c.Param("id") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/products/p1", nil))
	entry := receive(t, writes)
	assert.True(t, entry.Success)
	assert.Equal(t, "admin", entry.Actor)
	assert.Equal(t, "p1", entry.ResourceID)
	assert.Equal(t, models.ActionProductDelete, entry.Action)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/products/missing", nil))
	entry = receive(t, writes)
	assert.False(t, entry.Success)
	assert.Equal(t, "status 404", entry.ErrorMsg)
}

func TestAuditorSessionEvents(t *testing.T) {
	writes := make(chanWriter, 1)
	auditor := NewAuditor(writes, zap.NewNop())

	notifier := auth.NewNotifier()
	unsubscribe := notifier.Subscribe(auditor.OnSessionEvent)

	notifier.Publish(auth.Event{Kind: auth.SignedOut, Identity: auth.Identity{UserID: "u1", Email: "a@example.com"}})
	entry := receive(t, writes)
	assert.Equal(t, models.ActionLogout, entry.Action)
	assert.Equal(t, "a@example.com", entry.Actor)

	unsubscribe()
	notifier.Publish(auth.Event{Kind: auth.SignedIn})
	select {
	case <-writes:
		t.Fatal("unsubscribed auditor still received events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", m.Handler())

	m.ObserveSubmit("success")
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `orders_submitted_total{result="success"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",route="/ping",status="200"} 1`)
}
