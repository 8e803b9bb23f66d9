package engine

import (
	"math"

	"github.com/shopspring/decimal"

	"paper-trader/internal/model"
)

// Performance analytics over a completed backtest result. All functions are
// read-only and return zero on empty or degenerate input.

const tradingDaysPerYear = 252

// TotalReturnPct is the percentage return over the initial capital.
func TotalReturnPct(result model.BacktestResult) float64 {
	if !result.InitialCapital.IsPositive() || len(result.EquityCurve) == 0 {
		return 0
	}
	final := result.EquityCurve[len(result.EquityCurve)-1].TotalValue
	ret, _ := final.Sub(result.InitialCapital).Div(result.InitialCapital).Float64()
	return ret * 100
}

// MaxDrawdownPct is the largest percentage decline from the running peak of
// the equity curve.
func MaxDrawdownPct(curve []model.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	runningMax := curve[0].TotalValue
	maxDD := decimal.Zero
	for _, point := range curve {
		if point.TotalValue.GreaterThan(runningMax) {
			runningMax = point.TotalValue
		}
		if !runningMax.IsPositive() {
			continue
		}
		dd := runningMax.Sub(point.TotalValue).Div(runningMax)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	out, _ := maxDD.Float64()
	return out * 100
}

// WinRatePct is the share of sells with positive realized PnL. Buys carry no
// realized PnL and are excluded from the denominator.
func WinRatePct(trades []model.Trade) float64 {
	var sells, wins int
	for _, t := range trades {
		if t.Side != model.ActionSell || !t.Executed {
			continue
		}
		sells++
		if t.PnL.IsPositive() {
			wins++
		}
	}
	if sells == 0 {
		return 0
	}
	return float64(wins) / float64(sells) * 100
}

// SharpeRatio annualizes the mean excess per-bar return over the return
// standard deviation, assuming daily bars. Returns 0 for fewer than two
// points or zero variance.
func SharpeRatio(curve []model.EquityPoint, riskFreeRate float64) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev, _ := curve[i-1].TotalValue.Float64()
		cur, _ := curve[i].TotalValue.Float64()
		if prev == 0 {
			return 0
		}
		returns = append(returns, (cur-prev)/prev)
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		sumSq += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(sumSq / float64(len(returns)))
	if stdDev == 0 {
		return 0
	}

	excessMean := mean - riskFreeRate/tradingDaysPerYear
	return excessMean / stdDev * math.Sqrt(tradingDaysPerYear)
}

// BuildReport assembles the performance summary from a backtest result.
func BuildReport(result model.BacktestResult, strategyName string, riskFreeRate float64) model.BacktestReport {
	report := model.BacktestReport{
		StrategyName:   strategyName,
		InitialCapital: result.InitialCapital,
		FinalValue:     result.FinalValue,
		TotalReturnPct: TotalReturnPct(result),
		MaxDrawdownPct: MaxDrawdownPct(result.EquityCurve),
		SharpeRatio:    SharpeRatio(result.EquityCurve, riskFreeRate),
		WinRatePct:     WinRatePct(result.TradeHistory),
		AvgPnL:         decimal.Zero,
	}

	totalPnL := decimal.Zero
	var totalPnLPct float64
	for _, t := range result.TradeHistory {
		if t.Side != model.ActionSell || !t.Executed {
			continue
		}
		report.NumTrades++
		totalPnL = totalPnL.Add(t.PnL)

		// PnL = proceeds - fee - basis, so basis = proceeds - fee - PnL.
		costBasis := t.Amount.Mul(t.Price).Sub(t.Fee).Sub(t.PnL)
		if costBasis.IsPositive() {
			pct, _ := t.PnL.Div(costBasis).Float64()
			totalPnLPct += pct * 100
		}
	}
	if report.NumTrades > 0 {
		report.AvgPnL = totalPnL.Div(decimal.NewFromInt(int64(report.NumTrades)))
		report.AvgPnLPct = totalPnLPct / float64(report.NumTrades)
	}
	return report
}
