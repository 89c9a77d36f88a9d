package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"souq_back_end/internal/repository"
)

// ParseUUID reads a path parameter as a UUID. It answers 400 and returns
// false when the value is not one.
func ParseUUID(c *gin.Context, param string) (gocql.UUID, bool) {
	id, err := gocql.ParseUUID(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return gocql.UUID{}, false
	}
	return id, true
}

// StoreError maps a repository error to a response. notFoundMsg is used
// for ErrNotFound; anything else is logged and answered with 500.
func StoreError(c *gin.Context, logger *zap.Logger, err error, notFoundMsg string) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
		return
	}
	logger.Error("❌ store call failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
