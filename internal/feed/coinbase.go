package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/model"
)

// CoinbaseFeed streams matches from the Coinbase websocket. It serves as the
// fallback price source when the primary feed has no price yet.
type CoinbaseFeed struct {
	logger *zap.Logger
	symbol string // e.g. BTC-USD

	mu        sync.RWMutex
	lastPrice decimal.Decimal
	lastSeen  time.Time
}

func NewCoinbaseFeed(logger *zap.Logger, symbol string) *CoinbaseFeed {
	return &CoinbaseFeed{
		logger: logger,
		symbol: symbol,
	}
}

type coinbaseMatchEvent struct {
	Type      string `json:"type"`
	TradeID   int64  `json:"trade_id"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Time      string `json:"time"` // RFC3339
}

func (c *CoinbaseFeed) FetchPrice(_ context.Context) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastSeen.IsZero() {
		return decimal.Zero, ErrNoPrice
	}
	return c.lastPrice, nil
}

func (c *CoinbaseFeed) Run(ctx context.Context, tickChan chan<- model.Tick) {
	url := "wss://ws-feed.exchange.coinbase.com"
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.logger.Info("connecting to Coinbase websocket", zap.String("url", url))
		dialer := websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		}
		conn, _, err := dialer.Dial(url, nil)
		if err != nil {
			c.logger.Error("failed to connect to Coinbase", zap.Error(err))
			infrastructure.FeedErrors.WithLabelValues("coinbase").Inc()
			time.Sleep(backoff)
			backoff = increaseBackoff(backoff)
			continue
		}

		backoff = time.Second
		c.logger.Info("connected to Coinbase websocket")
		infrastructure.WSConnections.Inc()

		subMsg := map[string]interface{}{
			"type": "subscribe",
			"channels": []map[string]interface{}{
				{
					"name":        "matches",
					"product_ids": []string{c.symbol},
				},
			},
		}
		if err := conn.WriteJSON(subMsg); err != nil {
			c.logger.Error("failed to subscribe to Coinbase matches", zap.Error(err))
			infrastructure.WSConnections.Dec()
			conn.Close()
			continue
		}

		if err := c.handleConnection(ctx, conn, tickChan); err != nil {
			c.logger.Error("Coinbase connection closed with error", zap.Error(err))
		}
		infrastructure.WSConnections.Dec()
		conn.Close()
	}
}

func (c *CoinbaseFeed) handleConnection(ctx context.Context, conn *websocket.Conn, tickChan chan<- model.Tick) error {
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				return err
			}

			var event coinbaseMatchEvent
			if err := json.Unmarshal(message, &event); err != nil {
				continue
			}

			if event.Type != "match" && event.Type != "last_match" {
				continue
			}

			tick := c.convertToModel(event)
			c.updateLastPrice(tick)

			select {
			case tickChan <- tick:
			default:
				c.logger.Warn("tick channel full, dropping Coinbase tick", zap.String("trade_id", tick.ID))
			}

			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}
}

func (c *CoinbaseFeed) updateLastPrice(tick model.Tick) {
	if !tick.Price.IsPositive() {
		return
	}
	c.mu.Lock()
	c.lastPrice = tick.Price
	c.lastSeen = tick.Timestamp
	c.mu.Unlock()
}

func (c *CoinbaseFeed) convertToModel(event coinbaseMatchEvent) model.Tick {
	price, _ := decimal.NewFromString(event.Price)
	amount, _ := decimal.NewFromString(event.Size)
	t, _ := time.Parse(time.RFC3339, event.Time)

	return model.Tick{
		ID:        fmt.Sprintf("%d", event.TradeID),
		Symbol:    event.ProductID,
		Exchange:  "coinbase",
		Price:     price,
		Amount:    amount,
		Side:      event.Side,
		Timestamp: t,
	}
}
