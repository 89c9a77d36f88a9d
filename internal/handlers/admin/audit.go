package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"souq_back_end/internal/handlers"
	"souq_back_end/internal/models"
	"souq_back_end/internal/repository"
)

// AuditReader lists recorded audit entries.
type AuditReader interface {
	List(ctx context.Context, f repository.AuditFilter, limit int) ([]models.AuditLog, error)
}

type AuditHandler struct {
	logs   AuditReader
	logger *zap.Logger
}

func NewAuditHandler(logs AuditReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{logs: logs, logger: logger}
}

// GET /api/admin/audit?actor=&action=&resource=&success=&limit=
func (h *AuditHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	filter := repository.AuditFilter{
		Actor:    c.Query("actor"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
	}
	if raw := c.Query("success"); raw != "" {
		success, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "success must be true or false"})
			return
		}
		filter.Success = &success
	}

	logs, err := h.logs.List(c.Request.Context(), filter, limit)
	if err != nil {
		handlers.StoreError(c, h.logger, err, "")
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": len(logs),
		"filters": gin.H{
			"actor":    filter.Actor,
			"action":   filter.Action,
			"resource": filter.Resource,
			"success":  c.Query("success"),
			"limit":    limit,
		},
	})
}
