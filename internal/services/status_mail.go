package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/gocql/gocql"
	"github.com/redis/go-redis/v9"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"souq_back_end/internal/models"
)

// UserLookup finds the account an order was placed from.
type UserLookup interface {
	GetByID(ctx context.Context, id gocql.UUID) (*models.User, error)
}

type statusCopy struct {
	Subject string
	Message string
	Color   string
}

var statusCopies = map[models.OrderStatus]statusCopy{
	models.StatusPending:    {"تم استلام طلبك", "استلمنا طلبك وسنتواصل معك قريباً لتأكيده.", "#f39c12"},
	models.StatusProcessing: {"طلبك قيد التجهيز", "نقوم الآن بتجهيز طلبك للتوصيل.", "#3498db"},
	models.StatusCompleted:  {"تم تسليم طلبك", "تم تسليم طلبك. شكراً لتسوقك معنا.", "#27ae60"},
	models.StatusCancelled:  {"تم إلغاء طلبك", "تم إلغاء طلبك. تواصل معنا إذا كان لديك أي سؤال.", "#e74c3c"},
}

var statusTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html dir="rtl">
<body style="font-family: Arial, sans-serif; background-color: #f5f5f5;">
	<div style="max-width: 600px; margin: 0 auto; background-color: #ffffff; padding: 30px;">
		<p>{{.Name}}،</p>
		<div style="display: inline-block; padding: 10px 20px; background-color: {{.Color}}; color: #ffffff;">{{.Subject}}</div>
		<p>{{.Message}}</p>
		<p>رقم الطلب: {{.OrderID}}</p>
		<p><strong>{{.Total}} ₪</strong></p>
	</div>
</body>
</html>`))

// BuildStatusMessage renders the customer update for an order's current
// status.
func (m *Mailer) BuildStatusMessage(order models.Order, to string) (*mail.Msg, error) {
	sc, ok := statusCopies[order.Status]
	if !ok {
		return nil, fmt.Errorf("no email for status %q", order.Status)
	}

	var body bytes.Buffer
	err := statusTemplate.Execute(&body, struct {
		statusCopy
		Name    string
		OrderID string
		Total   string
	}{sc, order.FullName, order.ID.String(), order.TotalPrice.StringFixed(2)})
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, err
	}
	if err := msg.To(to); err != nil {
		return nil, err
	}
	msg.Subject(sc.Subject)
	msg.SetBodyString(mail.TypeTextHTML, body.String())
	return msg, nil
}

// NotifyStatusChange emails the account holder of a signed-in order. Guest
// orders carry no address and are skipped.
func (m *Mailer) NotifyStatusChange(ctx context.Context, order models.Order, users UserLookup) error {
	if order.UserID == nil {
		return nil
	}
	uid, err := gocql.ParseUUID(*order.UserID)
	if err != nil {
		return fmt.Errorf("order %s: bad user id: %w", order.ID, err)
	}
	u, err := users.GetByID(ctx, uid)
	if err != nil {
		return fmt.Errorf("lookup customer: %w", err)
	}

	msg, err := m.BuildStatusMessage(order, u.Email)
	if err != nil {
		return fmt.Errorf("build status email: %w", err)
	}
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send status email: %w", err)
	}
	return nil
}

// RelayStatusChanges mails customers for every status change read from the
// order feed until ctx ends or the channel closes.
func (m *Mailer) RelayStatusChanges(ctx context.Context, msgs <-chan *redis.Message, users UserLookup) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			var ev OrderEvent
			if err := json.Unmarshal([]byte(raw.Payload), &ev); err != nil {
				m.logger.Warn("bad order event", zap.Error(err))
				continue
			}
			if ev.Type != OrderStatusChanged || ev.Order == nil {
				continue
			}

			sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
			err := m.NotifyStatusChange(sendCtx, *ev.Order, users)
			cancel()
			if err != nil {
				m.logger.Error("❌ status email failed", zap.String("order_id", ev.OrderID), zap.Error(err))
				continue
			}
			m.logger.Debug("📤 status email handled", zap.String("order_id", ev.OrderID))
		}
	}
}
