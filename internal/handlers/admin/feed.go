package admin

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"souq_back_end/internal/handlers"
)

// FeedSource opens a subscription to the order events channel.
type FeedSource interface {
	Subscribe(ctx context.Context) *redis.PubSub
}

// OrderFeed relays order events to back office browsers.
type OrderFeed struct {
	source   FeedSource
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewOrderFeed(source FeedSource, allowedOrigins []string, logger *zap.Logger) *OrderFeed {
	return &OrderFeed{
		source:   source,
		upgrader: websocket.Upgrader{CheckOrigin: handlers.OriginChecker(allowedOrigins)},
		logger:   logger,
	}
}

// GET /api/admin/orders/feed
func (f *OrderFeed) Serve(c *gin.Context) {
	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := f.source.Subscribe(ctx)
	defer pubsub.Close()
	ch := pubsub.Channel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(gin.H{"type": "connected"}); err != nil {
		return
	}
	f.logger.Info("📡 order feed opened", zap.String("ip", c.ClientIP()))

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("order feed closed", zap.String("ip", c.ClientIP()))
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				f.logger.Debug("order feed write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
