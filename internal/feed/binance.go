package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/model"
)

// ErrNoPrice is returned by FetchPrice before the feed has seen any trade.
var ErrNoPrice = errors.New("no price received from feed yet")

// BinanceFeed streams live trades from the Binance websocket and keeps the
// last traded price, so it doubles as the engine's price source.
type BinanceFeed struct {
	logger *zap.Logger
	symbol string

	mu        sync.RWMutex
	lastPrice decimal.Decimal
	lastSeen  time.Time
}

func NewBinanceFeed(logger *zap.Logger, symbol string) *BinanceFeed {
	return &BinanceFeed{
		logger: logger,
		symbol: symbol,
	}
}

// binanceTradeEvent is the raw trade event from the Binance WS stream.
type binanceTradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// FetchPrice returns the most recent traded price.
func (b *BinanceFeed) FetchPrice(_ context.Context) (decimal.Decimal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.lastSeen.IsZero() {
		return decimal.Zero, ErrNoPrice
	}
	return b.lastPrice, nil
}

// Run connects to the trade stream and forwards ticks until the context is
// cancelled, reconnecting with exponential backoff.
func (b *BinanceFeed) Run(ctx context.Context, tickChan chan<- model.Tick) {
	url := fmt.Sprintf("wss://stream.binance.com:9443/ws/%s@trade", strings.ToLower(b.symbol))
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b.logger.Info("connecting to binance websocket", zap.String("url", url))
		dialer := websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		}
		conn, _, err := dialer.Dial(url, nil)
		if err != nil {
			b.logger.Error("failed to connect to binance", zap.Error(err))
			infrastructure.FeedErrors.WithLabelValues("binance").Inc()
			time.Sleep(backoff)
			backoff = increaseBackoff(backoff)
			continue
		}

		backoff = time.Second // reset on successful connection
		b.logger.Info("connected to binance websocket")
		infrastructure.WSConnections.Inc()

		if err := b.handleConnection(ctx, conn, tickChan); err != nil {
			b.logger.Error("connection closed with error", zap.Error(err))
		}
		infrastructure.WSConnections.Dec()
		conn.Close()
	}
}

func (b *BinanceFeed) handleConnection(ctx context.Context, conn *websocket.Conn, tickChan chan<- model.Tick) error {
	// A read deadline refreshed on pong detects stale connections.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				return err
			}

			var event binanceTradeEvent
			if err := json.Unmarshal(message, &event); err != nil {
				b.logger.Error("failed to unmarshal binance trade event", zap.Error(err))
				continue
			}

			tick := b.convertToModel(event)
			b.updateLastPrice(tick)

			select {
			case tickChan <- tick:
			default:
				b.logger.Warn("tick channel full, dropping tick", zap.String("trade_id", tick.ID))
			}
		}
	}
}

func (b *BinanceFeed) updateLastPrice(tick model.Tick) {
	if !tick.Price.IsPositive() {
		return
	}
	b.mu.Lock()
	b.lastPrice = tick.Price
	b.lastSeen = tick.Timestamp
	b.mu.Unlock()
}

func (b *BinanceFeed) convertToModel(event binanceTradeEvent) model.Tick {
	price, _ := decimal.NewFromString(event.Price)
	amount, _ := decimal.NewFromString(event.Quantity)

	side := "buy"
	if event.IsBuyerMaker {
		side = "sell" // maker is buyer means taker is seller
	}

	return model.Tick{
		ID:        fmt.Sprintf("%d", event.TradeID),
		Symbol:    event.Symbol,
		Exchange:  "binance",
		Price:     price,
		Amount:    amount,
		Side:      side,
		Timestamp: time.Unix(0, event.TradeTime*int64(time.Millisecond)),
	}
}

func increaseBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > time.Minute {
		return time.Minute
	}
	return next
}
