package user

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"souq_back_end/internal/cart"
	"souq_back_end/internal/handlers"
	"souq_back_end/internal/middleware"
)

// CartSubscriber opens a pub/sub subscription on one cart.
type CartSubscriber interface {
	Subscribe(ctx context.Context, cartID string) *redis.PubSub
}

// CartSync pushes the cart to every open tab whenever it changes.
type CartSync struct {
	carts    CartStore
	sub      CartSubscriber
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewCartSync(carts CartStore, sub CartSubscriber, allowedOrigins []string, logger *zap.Logger) *CartSync {
	return &CartSync{
		carts:    carts,
		sub:      sub,
		upgrader: websocket.Upgrader{CheckOrigin: handlers.OriginChecker(allowedOrigins)},
		logger:   logger,
	}
}

type cartMessage struct {
	Type string     `json:"type"`
	Cart *cart.Cart `json:"cart"`
}

// GET /api/cart/ws
func (s *CartSync) Serve(c *gin.Context) {
	cartID := middleware.CartID(c)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := s.sub.Subscribe(ctx, cartID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	// The read loop only notices the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := s.push(ctx, conn, cartID, "connected"); err != nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload != cart.EventUpdated && msg.Payload != cart.EventCleared {
				continue
			}
			if err := s.push(ctx, conn, cartID, "cart_updated"); err != nil {
				s.logger.Debug("cart push failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func (s *CartSync) push(ctx context.Context, conn *websocket.Conn, cartID, kind string) error {
	crt, err := s.carts.Load(ctx, cartID)
	if err != nil {
		s.logger.Warn("cart reload failed", zap.String("cart_id", cartID), zap.Error(err))
		crt = cart.New()
	}
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(cartMessage{Type: kind, Cart: crt})
}
