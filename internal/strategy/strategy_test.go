package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-trader/internal/model"
)

func candles(prices ...float64) []model.KLine {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.KLine, len(prices))
	for i, p := range prices {
		d := decimal.NewFromFloat(p)
		out[i] = model.KLine{
			Symbol:    "BTCUSDT",
			Open:      d,
			High:      d,
			Low:       d,
			Close:     d,
			Timestamp: now.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func run(s Strategy, bars []model.KLine) []model.Action {
	actions := make([]model.Action, len(bars))
	for i, c := range bars {
		actions[i] = s.OnCandle(c)
	}
	return actions
}

func TestSMACross_GoldenAndDeathCross(t *testing.T) {
	s := NewSMACrossStrategy(2, 4)

	// Flat, then a sharp rally, then a collapse.
	actions := run(s, candles(100, 100, 100, 100, 100, 110, 120, 130, 90, 60, 50))

	assert.Contains(t, actions, model.ActionBuy)
	assert.Contains(t, actions, model.ActionSell)

	// The buy must precede the sell.
	buyIdx, sellIdx := -1, -1
	for i, a := range actions {
		if a == model.ActionBuy && buyIdx == -1 {
			buyIdx = i
		}
		if a == model.ActionSell {
			sellIdx = i
		}
	}
	assert.Less(t, buyIdx, sellIdx)
}

func TestSMACross_HoldsUntilWarm(t *testing.T) {
	s := NewSMACrossStrategy(2, 5)
	actions := run(s, candles(1, 2, 3, 4, 5))
	for _, a := range actions {
		assert.Equal(t, model.ActionHold, a)
	}
}

func TestRSI_OversoldAndOverbought(t *testing.T) {
	s := NewRSIStrategy(3, 30, 70)

	// Straight decline: every change is a loss, RSI 0 -> BUY.
	bars := candles(100, 95, 90, 85)
	actions := run(s, bars)
	assert.Equal(t, model.ActionBuy, actions[len(actions)-1])

	// Straight rally: RSI 100 -> SELL.
	s = NewRSIStrategy(3, 30, 70)
	bars = candles(100, 105, 110, 115)
	actions = run(s, bars)
	assert.Equal(t, model.ActionSell, actions[len(actions)-1])
}

func TestMomentum(t *testing.T) {
	s := NewMomentumStrategy(4, 0.02)

	// Last price well above the window average.
	actions := run(s, candles(100, 100, 100, 120))
	assert.Equal(t, model.ActionBuy, actions[len(actions)-1])

	s = NewMomentumStrategy(4, 0.02)
	actions = run(s, candles(100, 100, 100, 80))
	assert.Equal(t, model.ActionSell, actions[len(actions)-1])

	s = NewMomentumStrategy(4, 0.02)
	actions = run(s, candles(100, 100, 100, 100))
	assert.Equal(t, model.ActionHold, actions[len(actions)-1])
}

func TestBreakout(t *testing.T) {
	s := NewBreakoutStrategy(3, 1.02)

	// Range around 100, then a close 5% above the recent high.
	actions := run(s, candles(100, 101, 99, 106))
	assert.Equal(t, model.ActionBuy, actions[len(actions)-1])

	s = NewBreakoutStrategy(3, 1.02)
	actions = run(s, candles(100, 101, 99, 90))
	assert.Equal(t, model.ActionSell, actions[len(actions)-1])
}

func TestMeanReversion(t *testing.T) {
	s := NewMeanReversionStrategy(4, 1.0)

	// A deep dip below the lower band.
	actions := run(s, candles(100, 101, 99, 100, 80))
	assert.Equal(t, model.ActionBuy, actions[len(actions)-1])

	s = NewMeanReversionStrategy(4, 1.0)
	actions = run(s, candles(100, 101, 99, 100, 120))
	assert.Equal(t, model.ActionSell, actions[len(actions)-1])
}

func TestBuyHold(t *testing.T) {
	s := NewBuyHoldStrategy()
	actions := run(s, candles(100, 101, 102))
	assert.Equal(t, []model.Action{model.ActionBuy, model.ActionHold, model.ActionHold}, actions)
}

func TestFactory(t *testing.T) {
	cases := []struct {
		typ    string
		config map[string]interface{}
		name   string
	}{
		{"sma_crossover", map[string]interface{}{"short_period": 5.0, "long_period": 20.0}, "sma_crossover"},
		{"rsi", nil, "rsi"},
		{"momentum", map[string]interface{}{"lookback": 10.0}, "momentum"},
		{"breakout", nil, "breakout"},
		{"mean_reversion", map[string]interface{}{"num_std": 1.5}, "mean_reversion"},
		{"buy_and_hold", nil, "buy_and_hold"},
	}
	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			s, err := NewStrategy(tc.typ, tc.config)
			require.NoError(t, err)
			assert.Equal(t, tc.name, s.Name())
		})
	}

	_, err := NewStrategy("martingale", nil)
	assert.Error(t, err)

	_, err = NewStrategy("sma_crossover", map[string]interface{}{"short_period": 30.0, "long_period": 10.0})
	assert.Error(t, err)
}
