package user

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"souq_back_end/internal/auth"
	"souq_back_end/internal/handlers"
	"souq_back_end/internal/middleware"
	"souq_back_end/internal/models"
	"souq_back_end/internal/repository"
)

// UserStore is the account persistence.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id gocql.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Revoker blacklists a token id until it would have expired.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

type AuthHandler struct {
	users    UserStore
	issuer   *auth.TokenIssuer
	revoker  Revoker
	notifier *auth.Notifier
	logger   *zap.Logger
}

func NewAuthHandler(users UserStore, issuer *auth.TokenIssuer, revoker Revoker, notifier *auth.Notifier, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, issuer: issuer, revoker: revoker, notifier: notifier, logger: logger}
}

type signupRequest struct {
	Name     string `json:"name" binding:"max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, u *models.User) {
	token, claims, err := h.issuer.Issue(u.ID.String(), u.Email)
	if err != nil {
		h.logger.Error("❌ token signing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.notifier.Publish(auth.Event{
		Kind:     auth.SignedIn,
		Identity: claims.Identity(),
		IP:       c.ClientIP(),
	})

	c.JSON(status, gin.H{
		"token":     token,
		"expiresAt": claims.ExpiresAt.Time,
		"user":      u,
	})
}

// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("❌ password hashing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	u := &models.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := h.users.Create(c.Request.Context(), u); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "an account with this email already exists"})
			return
		}
		handlers.StoreError(c, h.logger, err, "")
		return
	}

	h.logger.Info("✅ account created", zap.String("user_id", u.ID.String()))
	h.respondWithToken(c, http.StatusCreated, u)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		handlers.StoreError(c, h.logger, err, "")
		return
	}
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	ok, err := auth.VerifyPassword(req.Password, u.PasswordHash)
	if err != nil {
		h.logger.Warn("stored password hash unreadable", zap.String("user_id", u.ID.String()), zap.Error(err))
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	h.respondWithToken(c, http.StatusOK, u)
}

// POST /api/auth/logout revokes the presented token.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if err := h.revoker.Revoke(c.Request.Context(), claims.ID, claims.Remaining(time.Now())); err != nil {
		h.logger.Error("❌ token revocation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.notifier.Publish(auth.Event{
		Kind:     auth.SignedOut,
		Identity: claims.Identity(),
		IP:       c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	userID, err := gocql.ParseUUID(id.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	u, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "user not found")
		return
	}
	c.JSON(http.StatusOK, u)
}
