package processor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"paper-trader/internal/model"
)

func TestKlineProcessor_ProcessTick(t *testing.T) {
	logger := zap.NewNop()
	p := NewKlineProcessor(nil, logger)

	now := time.Now().Truncate(time.Minute)
	symbol := "BTCUSDT"
	exchange := "binance"

	// 1. First tick creates the candle
	tick1 := model.Tick{
		ID:        "1",
		Symbol:    symbol,
		Exchange:  exchange,
		Price:     decimal.NewFromFloat(50000),
		Amount:    decimal.NewFromFloat(1),
		Timestamp: now.Add(10 * time.Second),
	}
	p.processTick(tick1)

	key := "binance:BTCUSDT:" + now.Format(time.RFC3339)
	candle, ok := p.candles[key]
	assert.True(t, ok)
	assert.True(t, candle.Open.Equal(decimal.NewFromFloat(50000)))
	assert.True(t, candle.High.Equal(decimal.NewFromFloat(50000)))
	assert.True(t, candle.Low.Equal(decimal.NewFromFloat(50000)))
	assert.True(t, candle.Close.Equal(decimal.NewFromFloat(50000)))
	assert.True(t, candle.Volume.Equal(decimal.NewFromFloat(1)))

	// 2. Second tick updates high and close
	tick2 := model.Tick{
		ID:        "2",
		Symbol:    symbol,
		Exchange:  exchange,
		Price:     decimal.NewFromFloat(50100),
		Amount:    decimal.NewFromFloat(0.5),
		Timestamp: now.Add(20 * time.Second),
	}
	p.processTick(tick2)

	assert.True(t, candle.High.Equal(decimal.NewFromFloat(50100)))
	assert.True(t, candle.Low.Equal(decimal.NewFromFloat(50000)))
	assert.True(t, candle.Close.Equal(decimal.NewFromFloat(50100)))
	assert.True(t, candle.Volume.Equal(decimal.NewFromFloat(1.5)))

	// 3. Third tick updates low and close
	tick3 := model.Tick{
		ID:        "3",
		Symbol:    symbol,
		Exchange:  exchange,
		Price:     decimal.NewFromFloat(49900),
		Amount:    decimal.NewFromFloat(2),
		Timestamp: now.Add(30 * time.Second),
	}
	p.processTick(tick3)

	assert.True(t, candle.High.Equal(decimal.NewFromFloat(50100)))
	assert.True(t, candle.Low.Equal(decimal.NewFromFloat(49900)))
	assert.True(t, candle.Close.Equal(decimal.NewFromFloat(49900)))
	assert.True(t, candle.Volume.Equal(decimal.NewFromFloat(3.5)))

	// A tick in the next minute opens a separate candle.
	tick4 := model.Tick{
		ID:        "4",
		Symbol:    symbol,
		Exchange:  exchange,
		Price:     decimal.NewFromFloat(50200),
		Amount:    decimal.NewFromFloat(1),
		Timestamp: now.Add(70 * time.Second),
	}
	p.processTick(tick4)

	nextKey := "binance:BTCUSDT:" + now.Add(time.Minute).Format(time.RFC3339)
	next, ok := p.candles[nextKey]
	assert.True(t, ok)
	assert.True(t, next.Open.Equal(decimal.NewFromFloat(50200)))
	assert.True(t, candle.Close.Equal(decimal.NewFromFloat(49900)))
}
