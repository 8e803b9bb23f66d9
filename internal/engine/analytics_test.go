package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"paper-trader/internal/model"
)

func curve(values ...string) []model.EquityPoint {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.EquityPoint, len(values))
	for i, v := range values {
		out[i] = model.EquityPoint{
			Timestamp:  start.AddDate(0, 0, i),
			TotalValue: dec(v),
			Cash:       dec(v),
		}
	}
	return out
}

func TestTotalReturnPct(t *testing.T) {
	result := model.BacktestResult{
		InitialCapital: dec("10000"),
		EquityCurve:    curve("10000", "11000", "12000"),
	}
	assert.InDelta(t, 20.0, TotalReturnPct(result), 1e-9)

	assert.Equal(t, 0.0, TotalReturnPct(model.BacktestResult{InitialCapital: dec("10000")}))
}

func TestMaxDrawdownPct(t *testing.T) {
	// Peak 12000, trough 9000: drawdown 25%.
	points := curve("10000", "12000", "9000", "11000")
	assert.InDelta(t, 25.0, MaxDrawdownPct(points), 1e-9)

	// Monotonic curve has zero drawdown.
	assert.Equal(t, 0.0, MaxDrawdownPct(curve("10000", "11000", "12000")))
	assert.Equal(t, 0.0, MaxDrawdownPct(nil))
}

func TestWinRatePct(t *testing.T) {
	trades := []model.Trade{
		{Side: model.ActionBuy, Executed: true},
		{Side: model.ActionSell, Executed: true, PnL: dec("50")},
		{Side: model.ActionSell, Executed: true, PnL: dec("-20")},
		{Side: model.ActionSell, Executed: true, PnL: dec("10")},
		{Side: model.ActionHold},
	}
	// Two of three sells won; buys and holds are not in the denominator.
	assert.InDelta(t, 66.666, WinRatePct(trades), 0.01)

	assert.Equal(t, 0.0, WinRatePct(nil))
	assert.Equal(t, 0.0, WinRatePct([]model.Trade{{Side: model.ActionBuy, Executed: true}}))
}

func TestSharpeRatio(t *testing.T) {
	// One +1% and one -1% daily return: mean 0, so Sharpe ~0 at zero risk-free rate.
	alternating := curve("10000", "10100", "9999")
	assert.InDelta(t, 0.0, SharpeRatio(alternating, 0), 1e-9)

	// Steady gains with some variance give a positive ratio.
	rising := curve("10000", "10100", "10150", "10300", "10380")
	assert.Greater(t, SharpeRatio(rising, 0), 0.0)

	// A positive risk-free rate lowers it.
	assert.Greater(t, SharpeRatio(rising, 0), SharpeRatio(rising, 0.05))

	// Degenerate inputs.
	assert.Equal(t, 0.0, SharpeRatio(curve("10000"), 0))
	assert.Equal(t, 0.0, SharpeRatio(nil, 0))
	// Zero variance.
	assert.Equal(t, 0.0, SharpeRatio(curve("10000", "10000", "10000"), 0))
}

func TestSharpeRatio_KnownValue(t *testing.T) {
	points := curve("10000", "10200", "10200")
	// returns: 2%, 0% -> mean 1%, std 1% -> sharpe = 1 * sqrt(252)
	assert.InDelta(t, math.Sqrt(252), SharpeRatio(points, 0), 1e-6)
}

func TestBuildReport(t *testing.T) {
	result := model.BacktestResult{
		InitialCapital: dec("10000"),
		FinalValue:     dec("11000"),
		EquityCurve:    curve("10000", "10500", "10200", "11000"),
		TradeHistory: []model.Trade{
			{Side: model.ActionBuy, Executed: true, Amount: dec("10"), Price: dec("100"), Fee: dec("1")},
			{Side: model.ActionSell, Executed: true, Amount: dec("10"), Price: dec("110"), Fee: dec("1.1"), PnL: dec("97.9")},
		},
	}

	report := BuildReport(result, "sma_crossover", 0)

	assert.Equal(t, "sma_crossover", report.StrategyName)
	assert.InDelta(t, 10.0, report.TotalReturnPct, 1e-9)
	assert.Equal(t, 1, report.NumTrades)
	assert.True(t, report.AvgPnL.Equal(dec("97.9")))
	assert.InDelta(t, 100.0, report.WinRatePct, 1e-9)
	// Basis = 1100 - 1.1 - 97.9 = 1001; avg pnl pct = 97.9/1001.
	assert.InDelta(t, 9.7802, report.AvgPnLPct, 0.001)
	assert.Greater(t, report.MaxDrawdownPct, 0.0)
}

func TestBuildReport_Empty(t *testing.T) {
	report := BuildReport(model.BacktestResult{InitialCapital: dec("10000"), FinalValue: dec("10000")}, "", 0)
	assert.Equal(t, 0, report.NumTrades)
	assert.Equal(t, 0.0, report.TotalReturnPct)
	assert.Equal(t, 0.0, report.WinRatePct)
	assert.True(t, report.AvgPnL.IsZero())
}
