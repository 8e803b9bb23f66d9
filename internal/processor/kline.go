package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/model"
)

// KlineProcessor aggregates raw ticks into 1-minute OHLCV candles and
// publishes completed candles to the market.kline subjects.
type KlineProcessor struct {
	js      nats.JetStreamContext
	logger  *zap.Logger
	candles map[string]*model.KLine
	mu      sync.Mutex
}

func NewKlineProcessor(js nats.JetStreamContext, logger *zap.Logger) *KlineProcessor {
	return &KlineProcessor{
		js:      js,
		logger:  logger,
		candles: make(map[string]*model.KLine),
	}
}

func (p *KlineProcessor) Run(ctx context.Context) error {
	_, err := p.js.Subscribe("market.raw.*.*", func(msg *nats.Msg) {
		var tick model.Tick
		if err := json.Unmarshal(msg.Data, &tick); err != nil {
			p.logger.Error("failed to unmarshal tick in processor", zap.Error(err))
			return
		}
		infrastructure.TickProcessRate.WithLabelValues(tick.Symbol).Inc()
		p.processTick(tick)
		msg.Ack()
	}, nats.Durable("kline-processor"), nats.ManualAck())

	if err != nil {
		return err
	}

	go p.flushLoop(ctx)
	p.logger.Info("kline processor started")
	return nil
}

func (p *KlineProcessor) processTick(tick model.Tick) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 1 minute resolution
	window := tick.Timestamp.Truncate(time.Minute)
	key := fmt.Sprintf("%s:%s:%s", tick.Exchange, tick.Symbol, window.Format(time.RFC3339))

	candle, ok := p.candles[key]
	if !ok {
		candle = &model.KLine{
			Symbol:    tick.Symbol,
			Exchange:  tick.Exchange,
			Period:    "1m",
			Open:      tick.Price,
			High:      tick.Price,
			Low:       tick.Price,
			Close:     tick.Price,
			Volume:    tick.Amount,
			Timestamp: window,
		}
		p.candles[key] = candle
	} else {
		if tick.Price.GreaterThan(candle.High) {
			candle.High = tick.Price
		}
		if tick.Price.LessThan(candle.Low) {
			candle.Low = tick.Price
		}
		candle.Close = tick.Price
		candle.Volume = candle.Volume.Add(tick.Amount)
	}
}

func (p *KlineProcessor) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flush()
		}
	}
}

func (p *KlineProcessor) flush() {
	p.mu.Lock()
	now := time.Now().Truncate(time.Minute)
	toFlush := make([]*model.KLine, 0)

	for key, candle := range p.candles {
		// A candle stamped before the current minute is complete.
		if candle.Timestamp.Before(now) {
			toFlush = append(toFlush, candle)
			delete(p.candles, key)
		}
	}
	p.mu.Unlock()

	for _, candle := range toFlush {
		subject := fmt.Sprintf("market.kline.1m.%s", candle.Symbol)
		data, _ := json.Marshal(candle)
		_, err := p.js.Publish(subject, data)
		if err != nil {
			p.logger.Error("failed to publish kline", zap.Error(err))
		}
	}
}
