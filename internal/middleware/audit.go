package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"souq_back_end/internal/auth"
	"souq_back_end/internal/models"
)

// AuditWriter persists audit entries.
type AuditWriter interface {
	Insert(ctx context.Context, entry models.AuditLog) error
}

// Auditor records admin actions and session changes without blocking the
// request that caused them.
type Auditor struct {
	writer  AuditWriter
	logger  *zap.Logger
	timeout time.Duration
}

func NewAuditor(writer AuditWriter, logger *zap.Logger) *Auditor {
	return &Auditor{writer: writer, logger: logger, timeout: 5 * time.Second}
}

// Record writes entry in the background.
func (a *Auditor) Record(entry models.AuditLog) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.writer.Insert(ctx, entry); err != nil {
			a.logger.Error("❌ audit log write failed",
				zap.String("action", entry.Action),
				zap.String("resource_id", entry.ResourceID),
				zap.Error(err),
			)
		}
	}()
}

// Action records the outcome of the admin handler it wraps.
func (a *Auditor) Action(action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		entry := models.AuditLog{
			Actor:      AdminName(c),
			Action:     action,
			Resource:   resource,
			ResourceID: c.Param("id"),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Success:    status >= 200 && status < 300,
		}
		if id := c.GetString(auditResourceKey); id != "" {
			entry.ResourceID = id
		}
		if v := c.GetString(auditValueKey); v != "" {
			entry.NewValue = v
		}
		if !entry.Success {
			entry.ErrorMsg = fmt.Sprintf("status %d", status)
			if len(c.Errors) > 0 {
				entry.ErrorMsg = c.Errors.Last().Error()
			}
		}
		a.Record(entry)
	}
}

// OnSessionEvent turns a sign-in or sign-out into an audit entry.
func (a *Auditor) OnSessionEvent(ev auth.Event) {
	action := models.ActionLoginSuccess
	if ev.Kind == auth.SignedOut {
		action = models.ActionLogout
	}

	actor := ev.Identity.Email
	if ev.Admin {
		actor = "admin:" + ev.Identity.UserID
	}

	a.Record(models.AuditLog{
		Actor:      actor,
		Action:     action,
		Resource:   models.ResourceAuth,
		ResourceID: ev.Identity.UserID,
		IPAddress:  ev.IP,
		Success:    true,
		Timestamp:  ev.At,
	})
}

const (
	auditResourceKey = "audit_resource_id"
	auditValueKey    = "audit_new_value"
)

// SetAuditTarget lets a handler name the resource it created or changed.
func SetAuditTarget(c *gin.Context, resourceID, newValue string) {
	if resourceID != "" {
		c.Set(auditResourceKey, resourceID)
	}
	if newValue != "" {
		c.Set(auditValueKey, newValue)
	}
}
