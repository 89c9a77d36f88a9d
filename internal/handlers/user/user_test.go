package user

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"souq_back_end/internal/auth"
	"souq_back_end/internal/cache"
	"souq_back_end/internal/cart"
	"souq_back_end/internal/middleware"
	"souq_back_end/internal/models"
	"souq_back_end/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

type fakeProducts map[gocql.UUID]models.Product

func (f fakeProducts) Get(_ context.Context, id gocql.UUID) (*models.Product, error) {
	p, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func product(name string, price int64, qty int) models.Product {
	return models.Product{ID: gocql.TimeUUID(), Name: name, Price: decimal.NewFromInt(price), Quantity: qty}
}

type cartView struct {
	Items []struct {
		Product  models.Product `json:"product"`
		Quantity int            `json:"quantity"`
	} `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

const testCartID = "0b5e2c1e-8f55-4c3a-9c3e-0d9b7f1a2b3c"

func cartRouter(t *testing.T, products fakeProducts) (*gin.Engine, *cart.Store) {
	t.Helper()
	store := cart.NewStore(newRedis(t))
	h := NewCartHandler(store, products, zap.NewNop())

	r := gin.New()
	g := r.Group("/cart", middleware.CartSession(false))
	g.GET("", h.Get)
	g.POST("/items", h.AddItem)
	g.PUT("/items/:productId", h.UpdateItem)
	g.DELETE("/items/:productId", h.RemoveItem)
	g.DELETE("", h.Clear)
	return r, store
}

func call(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CartHeader, testCartID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) cartView {
	t.Helper()
	var v cartView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestCart_AddClampsToStock(t *testing.T) {
	oil := product("زيت", 40, 3)
	r, store := cartRouter(t, fakeProducts{oil.ID: oil})

	w := call(r, http.MethodPost, "/cart/items", `{"productId":"`+oil.ID.String()+`","quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decodeCart(t, w).TotalItems)

	w = call(r, http.MethodPost, "/cart/items", `{"productId":"`+oil.ID.String()+`","quantity":5}`)
	require.Equal(t, http.StatusOK, w.Code)
	v := decodeCart(t, w)
	assert.Equal(t, 3, v.TotalItems)
	assert.True(t, decimal.NewFromInt(120).Equal(v.TotalPrice))

	w = call(r, http.MethodPost, "/cart/items", `{"productId":"`+oil.ID.String()+`","quantity":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	saved, err := store.Load(context.Background(), testCartID)
	require.NoError(t, err)
	assert.Equal(t, 3, saved.TotalItems())
}

func TestCart_AddRejectsMissingAndOutOfStock(t *testing.T) {
	empty := product("soap", 10, 0)
	r, _ := cartRouter(t, fakeProducts{empty.ID: empty})

	w := call(r, http.MethodPost, "/cart/items", `{"productId":"`+empty.ID.String()+`","quantity":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(r, http.MethodPost, "/cart/items", `{"productId":"`+gocql.TimeUUID().String()+`","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodPost, "/cart/items", `{"productId":"`+empty.ID.String()+`","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCart_UpdateRemoveClear(t *testing.T) {
	a, b := product("a", 5, 10), product("b", 7, 10)
	r, _ := cartRouter(t, fakeProducts{a.ID: a, b.ID: b})

	call(r, http.MethodPost, "/cart/items", `{"productId":"`+a.ID.String()+`","quantity":1}`)
	call(r, http.MethodPost, "/cart/items", `{"productId":"`+b.ID.String()+`","quantity":1}`)

	w := call(r, http.MethodPut, "/cart/items/"+a.ID.String(), `{"quantity":4}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, decodeCart(t, w).TotalItems)

	w = call(r, http.MethodPut, "/cart/items/"+a.ID.String(), `{"quantity":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeCart(t, w).Items, 1)

	w = call(r, http.MethodPut, "/cart/items/"+a.ID.String(), `{"quantity":2}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodDelete, "/cart/items/"+b.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeCart(t, w).TotalItems)

	call(r, http.MethodPost, "/cart/items", `{"productId":"`+b.ID.String()+`","quantity":2}`)
	w = call(r, http.MethodDelete, "/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeCart(t, w).TotalItems)

	w = call(r, http.MethodGet, "/cart", "")
	assert.Empty(t, decodeCart(t, w).Items)
}

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]models.User
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = repository.NormalizeEmail(u.Email)
	if _, ok := f.byEmail[u.Email]; ok {
		return repository.ErrEmailTaken
	}
	u.ID = gocql.TimeUUID()
	u.CreatedAt = time.Now()
	f.byEmail[u.Email] = *u
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id gocql.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[repository.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func authRouter(t *testing.T) (*gin.Engine, *auth.Notifier) {
	t.Helper()
	rdb := newRedis(t)
	blacklist := cache.NewBlacklist(rdb)
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	notifier := auth.NewNotifier()
	h := NewAuthHandler(&fakeUsers{byEmail: make(map[string]models.User)}, issuer, blacklist, notifier, zap.NewNop())

	r := gin.New()
	api := r.Group("/auth", middleware.OptionalAuth(issuer, blacklist, zap.NewNop()))
	api.POST("/signup", h.Signup)
	api.POST("/login", h.Login)
	api.POST("/logout", middleware.AuthRequired(), h.Logout)
	api.GET("/me", middleware.AuthRequired(), h.Me)
	return r, notifier
}

func authCall(r *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func tokenOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestAuth_SignupLoginMeLogout(t *testing.T) {
	r, notifier := authRouter(t)

	var mu sync.Mutex
	var kinds []auth.EventKind
	unsubscribe := notifier.Subscribe(func(ev auth.Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})
	defer unsubscribe()

	w := authCall(r, http.MethodPost, "/auth/signup", `{"name":"Lina","email":"Lina@Example.com","password":"s3cret-pass"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "s3cret-pass")

	w = authCall(r, http.MethodPost, "/auth/signup", `{"email":"lina@example.com","password":"another-pass"}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = authCall(r, http.MethodPost, "/auth/login", `{"email":"lina@example.com","password":"wrong-pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = authCall(r, http.MethodPost, "/auth/login", `{"email":"nobody@example.com","password":"wrong-pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = authCall(r, http.MethodPost, "/auth/login", `{"email":"lina@example.com","password":"s3cret-pass"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	token := tokenOf(t, w)

	w = authCall(r, http.MethodGet, "/auth/me", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"lina@example.com"`)

	w = authCall(r, http.MethodPost, "/auth/logout", "", token)
	require.Equal(t, http.StatusOK, w.Code)

	w = authCall(r, http.MethodGet, "/auth/me", "", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []auth.EventKind{auth.SignedIn, auth.SignedIn, auth.SignedOut}, kinds)
}

func TestAuth_SignupValidation(t *testing.T) {
	r, _ := authRouter(t)

	w := authCall(r, http.MethodPost, "/auth/signup", `{"email":"not-an-email","password":"s3cret-pass"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = authCall(r, http.MethodPost, "/auth/signup", `{"email":"a@example.com","password":"short"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeOrderLister struct {
	orders map[string][]models.OrderWithItems
}

func (f fakeOrderLister) ListByUser(_ context.Context, userID string) ([]models.OrderWithItems, error) {
	return f.orders[userID], nil
}

func TestMine(t *testing.T) {
	uid := "user-1"
	lister := fakeOrderLister{orders: map[string][]models.OrderWithItems{
		uid: {{Order: models.Order{ID: gocql.TimeUUID(), UserID: &uid, Status: models.StatusPending}}},
	}}
	h := NewOrderHandler(lister, zap.NewNop())

	r := gin.New()
	r.GET("/orders/mine", func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), auth.Identity{UserID: id}))
		}
		c.Next()
	}, h.Mine)

	req := httptest.NewRequest(http.MethodGet, "/orders/mine", nil)
	req.Header.Set("X-Test-User", uid)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)

	req = httptest.NewRequest(http.MethodGet, "/orders/mine", nil)
	req.Header.Set("X-Test-User", "someone-else")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"orders":[]}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/mine", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
