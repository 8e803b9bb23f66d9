package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"paper-trader/internal/ledger"
	"paper-trader/internal/model"
	"paper-trader/internal/risk"
	"paper-trader/internal/signal"
	"paper-trader/internal/strategy"
)

// Decider turns one historical bar into a trade signal. It replaces the live
// score fetching of the runner; everything downstream (risk gate, ledger,
// trade log) is identical.
type Decider interface {
	Decide(candle model.KLine) model.TradeSignal
}

// StrategyDecider adapts a classic single-signal strategy.
type StrategyDecider struct {
	Strategy strategy.Strategy
}

func (d StrategyDecider) Decide(candle model.KLine) model.TradeSignal {
	action := d.Strategy.OnCandle(candle)
	return model.MustTradeSignal(action, 1.0, d.Strategy.Name())
}

// ScoreRow is one recorded set of advisory scores aligned with a bar.
type ScoreRow struct {
	Sentiment    float64 `json:"sentiment"`
	Quantum      float64 `json:"quantum"`
	AIPrediction float64 `json:"ai_prediction"`
}

// AggregatorDecider replays recorded advisory scores through the signal
// aggregator, one row per bar. Bars beyond the score series decide HOLD.
type AggregatorDecider struct {
	Aggregator *signal.Aggregator
	Scores     []ScoreRow
	next       int
}

func (d *AggregatorDecider) Decide(model.KLine) model.TradeSignal {
	if d.next >= len(d.Scores) {
		return model.MustTradeSignal(model.ActionHold, 0, "no recorded scores for bar")
	}
	row := d.Scores[d.next]
	d.next++
	return d.Aggregator.Aggregate(row.Sentiment, row.Quantum, row.AIPrediction)
}

// BacktestConfig holds the replay parameters.
type BacktestConfig struct {
	Symbol         string
	InitialCapital decimal.Decimal
	FeeRate        decimal.Decimal
	TradePct       decimal.Decimal
	MinTradeAmount decimal.Decimal
	RiskLimits     risk.Limits
}

// Backtester replays an ordered historical series through the same per-step
// logic as the live runner. Given the same input series and parameters the
// output is identical across runs: the only timestamps used are the rows'
// own, and trade ids are sequential.
type Backtester struct {
	cfg    BacktestConfig
	params tradeParams
}

func NewBacktester(cfg BacktestConfig) (*Backtester, error) {
	params := tradeParams{
		symbol:   cfg.Symbol,
		feeRate:  cfg.FeeRate,
		tradePct: cfg.TradePct,
		minTrade: cfg.MinTradeAmount,
	}
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	if !cfg.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("invalid backtest config: initial capital must be positive, got %s", cfg.InitialCapital)
	}
	return &Backtester{cfg: cfg, params: params}, nil
}

// Run replays the candle series. Malformed history (non-positive close,
// out-of-order timestamps) fails the run instead of fabricating prices,
// which would corrupt the determinism guarantee.
func (b *Backtester) Run(candles []model.KLine, decider Decider) (model.BacktestResult, error) {
	if err := validateSeries(candles); err != nil {
		return model.BacktestResult{}, err
	}

	led, err := ledger.New(b.cfg.InitialCapital, ledger.PolicyReject)
	if err != nil {
		return model.BacktestResult{}, err
	}
	gate, err := risk.NewGate(b.cfg.RiskLimits)
	if err != nil {
		return model.BacktestResult{}, err
	}
	gate.SetInitialBalance(b.cfg.InitialCapital)

	result := model.BacktestResult{
		EquityCurve:    make([]model.EquityPoint, 0, len(candles)),
		TradeHistory:   make([]model.Trade, 0, len(candles)),
		InitialCapital: b.cfg.InitialCapital,
		FinalValue:     b.cfg.InitialCapital,
	}

	for i, candle := range candles {
		sig := decider.Decide(candle)
		trade := executeDecision(led, gate, b.params, sig, candle.Close)
		trade.ID = fmt.Sprintf("bt-%06d", i+1)
		trade.Timestamp = candle.Timestamp
		result.TradeHistory = append(result.TradeHistory, trade)

		positionValue := led.Position(b.params.symbol).Mul(candle.Close)
		totalValue := led.Cash().Add(positionValue)
		result.EquityCurve = append(result.EquityCurve, model.EquityPoint{
			Timestamp:     candle.Timestamp,
			TotalValue:    totalValue,
			Cash:          led.Cash(),
			PositionValue: positionValue,
		})
	}

	if len(result.EquityCurve) > 0 {
		result.FinalValue = result.EquityCurve[len(result.EquityCurve)-1].TotalValue
	}
	return result, nil
}

func validateSeries(candles []model.KLine) error {
	for i, c := range candles {
		if !c.Close.IsPositive() {
			return fmt.Errorf("bar %d: close must be positive, got %s", i, c.Close)
		}
		if i > 0 && !candles[i-1].Timestamp.Before(c.Timestamp) {
			return fmt.Errorf("bar %d: timestamps must be strictly ascending", i)
		}
	}
	return nil
}
