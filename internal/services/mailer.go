package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/gocql/gocql"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"souq_back_end/internal/config"
	"souq_back_end/internal/models"
)

// ProductLookup resolves product names for the order email.
type ProductLookup interface {
	GetMany(ctx context.Context, ids []gocql.UUID) (map[gocql.UUID]models.Product, error)
}

// Sender delivers a built message.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer tells the shop inbox about new orders.
type Mailer struct {
	sender   Sender
	from     string
	to       string
	products ProductLookup
	logger   *zap.Logger
	timeout  time.Duration
}

// NewMailer returns nil when SMTP is not configured.
func NewMailer(cfg config.SMTPConfig, products ProductLookup, logger *zap.Logger) (*Mailer, error) {
	if !cfg.Enabled() {
		logger.Info("smtp not configured, order emails disabled")
		return nil, nil
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return newMailer(client, from, cfg.ShopAddress, products, logger), nil
}

func newMailer(sender Sender, from, to string, products ProductLookup, logger *zap.Logger) *Mailer {
	return &Mailer{
		sender:   sender,
		from:     from,
		to:       to,
		products: products,
		logger:   logger,
		timeout:  30 * time.Second,
	}
}

type emailLine struct {
	Name     string
	Quantity int
	Price    string
	Subtotal string
}

type emailData struct {
	OrderID string
	Name    string
	Phone   string
	Address string
	Notes   string
	Total   string
	Lines   []emailLine
}

var newOrderTemplate = template.Must(template.New("order").Parse(`<!DOCTYPE html>
<html dir="rtl">
<body style="font-family: Arial, sans-serif;">
	<h2>طلب جديد {{.OrderID}}</h2>
	<p>{{.Name}} / {{.Phone}}</p>
	<p>{{.Address}}</p>
	{{if .Notes}}<p>{{.Notes}}</p>{{end}}
	<table style="border-collapse: collapse;">
		{{range .Lines}}<tr>
			<td style="padding: 6px; border: 1px solid #ddd;">{{.Name}}</td>
			<td style="padding: 6px; border: 1px solid #ddd;">{{.Quantity}}</td>
			<td style="padding: 6px; border: 1px solid #ddd;">{{.Price}}</td>
			<td style="padding: 6px; border: 1px solid #ddd;">{{.Subtotal}}</td>
		</tr>{{end}}
	</table>
	<p><strong>{{.Total}} ₪</strong></p>
</body>
</html>`))

// BuildNewOrderMessage renders the notification for one order.
func (m *Mailer) BuildNewOrderMessage(order models.Order, items []models.OrderItem, names map[gocql.UUID]models.Product) (*mail.Msg, error) {
	data := emailData{
		OrderID: order.ID.String(),
		Name:    order.FullName,
		Phone:   order.PhoneNumber,
		Address: order.Address,
		Notes:   order.Notes,
		Total:   order.TotalPrice.StringFixed(2),
	}
	for _, it := range items {
		name := it.ProductID.String()
		if p, ok := names[it.ProductID]; ok {
			name = p.Name
		}
		data.Lines = append(data.Lines, emailLine{
			Name:     name,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
			Subtotal: it.Price.Mul(decimalFromInt(it.Quantity)).StringFixed(2),
		})
	}

	var body bytes.Buffer
	if err := newOrderTemplate.Execute(&body, data); err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, err
	}
	if err := msg.To(m.to); err != nil {
		return nil, err
	}
	msg.Subject(fmt.Sprintf("طلب جديد - %s", order.FullName))
	msg.SetBodyString(mail.TypeTextHTML, body.String())
	return msg, nil
}

// NotifyNewOrder emails the shop inbox about one order.
func (m *Mailer) NotifyNewOrder(ctx context.Context, order models.Order, items []models.OrderItem) error {
	ids := make([]gocql.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	names, err := m.products.GetMany(ctx, ids)
	if err != nil {
		m.logger.Warn("order email: product lookup failed", zap.Error(err))
	}

	msg, err := m.BuildNewOrderMessage(order, items, names)
	if err != nil {
		return fmt.Errorf("build order email: %w", err)
	}
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send order email: %w", err)
	}
	return nil
}

// OrderPlaced sends the notification in the background. Mail failures are
// logged and never affect the order.
func (m *Mailer) OrderPlaced(_ context.Context, order models.Order, items []models.OrderItem) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		if err := m.NotifyNewOrder(ctx, order, items); err != nil {
			m.logger.Error("❌ order email failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
			return
		}
		m.logger.Info("📤 order email sent", zap.String("order_id", order.ID.String()))
	}()
}
