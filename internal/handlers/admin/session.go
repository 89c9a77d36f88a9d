package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"souq_back_end/internal/auth"
	"souq_back_end/internal/middleware"
	"souq_back_end/internal/models"
)

type SessionHandler struct {
	sessions *middleware.AdminSessions
	notifier *auth.Notifier
	auditor  *middleware.Auditor
	logger   *zap.Logger
}

func NewSessionHandler(sessions *middleware.AdminSessions, notifier *auth.Notifier, auditor *middleware.Auditor, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, notifier: notifier, auditor: auditor, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /api/admin/login
func (h *SessionHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.sessions.Authenticate(req.Username, req.Password) {
		h.auditor.Record(models.AuditLog{
			Actor:     "admin:" + req.Username,
			Action:    models.ActionLoginFailed,
			Resource:  models.ResourceAuth,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			ErrorMsg:  "invalid credentials",
		})
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := h.sessions.Login(c); err != nil {
		h.logger.Error("❌ admin session save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.notifier.Publish(auth.Event{
		Kind:     auth.SignedIn,
		Identity: auth.Identity{UserID: req.Username},
		Admin:    true,
		IP:       c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "signed in", "username": req.Username})
}

// POST /api/admin/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	name := middleware.AdminName(c)
	if err := h.sessions.Logout(c); err != nil {
		h.logger.Error("❌ admin session clear failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.notifier.Publish(auth.Event{
		Kind:     auth.SignedOut,
		Identity: auth.Identity{UserID: name},
		Admin:    true,
		IP:       c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}
