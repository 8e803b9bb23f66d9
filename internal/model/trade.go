package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one append-only entry of the engine's audit trail. HOLD cycles and
// risk rejections are recorded too, with zero amount and fee, so the history
// covers every decision, not only executed orders.
type Trade struct {
	ID            string          `json:"id" db:"trade_id"`
	Timestamp     time.Time       `json:"time" db:"time"`
	Symbol        string          `json:"symbol" db:"symbol"`
	Side          Action          `json:"side" db:"side"`
	Price         decimal.Decimal `json:"price" db:"price"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Fee           decimal.Decimal `json:"fee" db:"fee"`
	PnL           decimal.Decimal `json:"pnl" db:"pnl"` // realized, sells only
	CashAfter     decimal.Decimal `json:"cash_after" db:"cash_after"`
	PositionAfter decimal.Decimal `json:"position_after" db:"position_after"`
	Executed      bool            `json:"executed" db:"executed"`
	Reason        string          `json:"reason,omitempty" db:"reason"`
}

// EquityPoint is one row of a backtest equity curve.
type EquityPoint struct {
	Timestamp     time.Time       `json:"time"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Cash          decimal.Decimal `json:"cash"`
	PositionValue decimal.Decimal `json:"position_value"`
}

// BacktestResult is the raw output of a backtest run and the sole input of
// the performance analyzer.
type BacktestResult struct {
	EquityCurve    []EquityPoint   `json:"equity_curve"`
	TradeHistory   []Trade         `json:"trade_history"`
	FinalValue     decimal.Decimal `json:"final_value"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
}

// BacktestReport is the derived performance summary.
type BacktestReport struct {
	StrategyName   string          `json:"strategy_name,omitempty"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalValue     decimal.Decimal `json:"final_value"`
	TotalReturnPct float64         `json:"total_return_pct"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	SharpeRatio    float64         `json:"sharpe_ratio"`
	WinRatePct     float64         `json:"win_rate_pct"`
	NumTrades      int             `json:"num_trades"`
	AvgPnL         decimal.Decimal `json:"avg_pnl"`
	AvgPnLPct      float64         `json:"avg_pnl_pct"`
}

// ProfitLoss is the portfolio P/L against the initial balance.
type ProfitLoss struct {
	Absolute     decimal.Decimal `json:"absolute"`
	Percentage   float64         `json:"percentage"`
	CurrentValue decimal.Decimal `json:"current_value"`
	InitialValue decimal.Decimal `json:"initial_value"`
}

// TradeSummary aggregates the trade history by side.
type TradeSummary struct {
	Total     int             `json:"total"`
	BuyCount  int             `json:"buy_count"`
	SellCount int             `json:"sell_count"`
	HoldCount int             `json:"hold_count"`
	TotalFees decimal.Decimal `json:"total_fees"`
}

// StepResult is the per-cycle result object published after every live cycle.
type StepResult struct {
	Step           int             `json:"step"`
	Timestamp      time.Time       `json:"time"`
	Sentiment      float64         `json:"sentiment"`
	Quantum        float64         `json:"quantum"`
	AIPrediction   float64         `json:"ai_prediction"`
	Price          decimal.Decimal `json:"price"`
	Signal         TradeSignal     `json:"signal"`
	Trade          *Trade          `json:"trade,omitempty"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	ProfitLoss     ProfitLoss      `json:"profit_loss"`
}

// EngineStatus is the cumulative status object exposed to dashboards.
type EngineStatus struct {
	StepCount      int             `json:"step_count"`
	Sentiment      float64         `json:"latest_sentiment"`
	Quantum        float64         `json:"latest_quantum"`
	AIPrediction   float64         `json:"latest_ai"`
	Price          decimal.Decimal `json:"latest_price"`
	Signal         *TradeSignal    `json:"latest_signal,omitempty"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	ProfitLoss     ProfitLoss      `json:"profit_loss"`
	TradeSummary   TradeSummary    `json:"trade_summary"`
}
