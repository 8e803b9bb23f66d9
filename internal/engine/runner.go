package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/ledger"
	"paper-trader/internal/model"
	"paper-trader/internal/risk"
	"paper-trader/internal/signal"
)

// StepPublisher receives every completed cycle result, e.g. for fan-out over
// NATS. A nil publisher disables publishing.
type StepPublisher interface {
	PublishStep(result model.StepResult) error
}

// RunnerConfig holds the live loop parameters.
type RunnerConfig struct {
	Symbol         string
	FeeRate        decimal.Decimal
	TradePct       decimal.Decimal
	MinTradeAmount decimal.Decimal
	Interval       time.Duration
}

// Runner is the live execution loop: each cycle it pulls the three advisory
// scores and the current price, aggregates them into a signal, passes the
// proposed order through the risk gate and applies it to the ledger.
//
// Cycles are strictly sequential. Cancellation is cooperative, checked
// between cycles, so an in-flight cycle always runs to completion.
type Runner struct {
	params   tradeParams
	interval time.Duration

	aggregator *signal.Aggregator
	gate       *risk.Gate
	ledger     *ledger.Ledger

	sentiment ScoreSource
	quantum   ScoreSource
	ai        ScoreSource
	price     PriceSource

	logger    *zap.Logger
	publisher StepPublisher

	// mu guards the ledger and the fields below; the loop writes them and
	// HTTP handlers read them through Status and Trades.
	mu             sync.Mutex
	stepCount      int
	lastPrice      decimal.Decimal
	lastSentiment  float64
	lastQuantum    float64
	lastAI         float64
	lastSignal     *model.TradeSignal
	initialBalance decimal.Decimal
	history        []model.Trade
}

func NewRunner(
	cfg RunnerConfig,
	aggregator *signal.Aggregator,
	gate *risk.Gate,
	led *ledger.Ledger,
	sentiment, quantum, ai ScoreSource,
	price PriceSource,
	publisher StepPublisher,
	logger *zap.Logger,
) (*Runner, error) {
	params := tradeParams{
		symbol:   cfg.Symbol,
		feeRate:  cfg.FeeRate,
		tradePct: cfg.TradePct,
		minTrade: cfg.MinTradeAmount,
	}
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("invalid runner config: %w", err)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("invalid runner config: interval must be positive, got %s", cfg.Interval)
	}

	initial := led.Cash()
	gate.SetInitialBalance(initial)

	return &Runner{
		params:         params,
		interval:       cfg.Interval,
		aggregator:     aggregator,
		gate:           gate,
		ledger:         led,
		sentiment:      sentiment,
		quantum:        quantum,
		ai:             ai,
		price:          price,
		logger:         logger,
		publisher:      publisher,
		initialBalance: initial,
	}, nil
}

// Run executes cycles on a fixed interval until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("execution loop started",
		zap.String("symbol", r.params.symbol),
		zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("execution loop stopped", zap.Int("steps", r.StepCount()))
			return ctx.Err()
		case <-ticker.C:
			r.Step(ctx)
		}
	}
}

// Step runs one complete decision cycle and returns its result. Feed
// failures never abort the cycle: scores fall back to 0.0 and the price to
// the last good value; with no usable price the cycle is still recorded as a
// HOLD.
func (r *Runner) Step(ctx context.Context) model.StepResult {
	sentiment := r.fetchScore(ctx, "sentiment", r.sentiment)
	quantum := r.fetchScore(ctx, "quantum", r.quantum)
	aiPrediction := r.fetchScore(ctx, "ai", r.ai)
	price := r.fetchPrice(ctx)

	sig := r.aggregator.Aggregate(sentiment, quantum, aiPrediction)

	// The ledger is only ever touched under r.mu: Status, Trades, Reset and
	// the snapshot calls run on HTTP goroutines against the same ledger, and
	// holding the lock across the whole mutation also keeps a Reset from
	// landing in the middle of a cycle.
	r.mu.Lock()
	var trade model.Trade
	if price.IsPositive() {
		trade = executeDecision(r.ledger, r.gate, r.params, sig, price)
	} else {
		trade = holdRecord(r.ledger, r.params.symbol, price, "no valid price available")
	}
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now()
	}

	prices := map[string]decimal.Decimal{r.params.symbol: price}
	portfolioValue := r.ledger.TotalValue(prices)
	pl := profitLoss(portfolioValue, r.initialBalance)

	r.stepCount++
	step := r.stepCount
	r.lastSentiment = sentiment
	r.lastQuantum = quantum
	r.lastAI = aiPrediction
	sigCopy := sig
	r.lastSignal = &sigCopy
	r.history = append(r.history, trade)
	r.mu.Unlock()

	result := model.StepResult{
		Step:           step,
		Timestamp:      trade.Timestamp,
		Sentiment:      sentiment,
		Quantum:        quantum,
		AIPrediction:   aiPrediction,
		Price:          price,
		Signal:         sig,
		Trade:          &trade,
		PortfolioValue: portfolioValue,
		ProfitLoss:     pl,
	}

	infrastructure.EngineCycles.Inc()
	if trade.Executed {
		infrastructure.TradesExecuted.WithLabelValues(trade.Symbol, string(trade.Side)).Inc()
	}
	pv, _ := portfolioValue.Float64()
	infrastructure.PortfolioValue.Set(pv)

	r.logger.Info("cycle completed",
		zap.Int("step", step),
		zap.String("action", string(sig.Action)),
		zap.Float64("confidence", sig.Confidence),
		zap.String("price", price.String()),
		zap.String("portfolio_value", portfolioValue.String()),
		zap.Bool("executed", trade.Executed),
		zap.String("reason", trade.Reason))

	if r.publisher != nil {
		if err := r.publisher.PublishStep(result); err != nil {
			r.logger.Error("failed to publish step result", zap.Error(err))
		}
	}

	return result
}

func (r *Runner) fetchScore(ctx context.Context, name string, src ScoreSource) float64 {
	if src == nil {
		return 0.0
	}
	score, err := src.FetchScore(ctx)
	if err != nil {
		r.logger.Warn("score fetch failed, substituting neutral",
			zap.String("source", name), zap.Error(err))
		infrastructure.FeedErrors.WithLabelValues(name).Inc()
		return 0.0
	}
	return score
}

// fetchPrice returns the current price, falling back to the last good one on
// failure. Before any price has ever been seen the fallback is zero, which
// marks the cycle as unusable for trading.
func (r *Runner) fetchPrice(ctx context.Context) decimal.Decimal {
	r.mu.Lock()
	last := r.lastPrice
	r.mu.Unlock()

	if r.price == nil {
		return last
	}
	price, err := r.price.FetchPrice(ctx)
	if err != nil || !price.IsPositive() {
		if err != nil {
			r.logger.Warn("price fetch failed, using last known price", zap.Error(err))
		} else {
			r.logger.Warn("non-positive price received, using last known price",
				zap.String("price", price.String()))
		}
		infrastructure.FeedErrors.WithLabelValues("price").Inc()
		return last
	}

	r.mu.Lock()
	r.lastPrice = price
	r.mu.Unlock()
	return price
}

func (r *Runner) StepCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stepCount
}

// Trades returns a copy of the full decision history.
func (r *Runner) Trades() []model.Trade {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Trade, len(r.history))
	copy(out, r.history)
	return out
}

// Status reports the cumulative engine state for dashboards and bots.
func (r *Runner) Status() model.EngineStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	prices := map[string]decimal.Decimal{r.params.symbol: r.lastPrice}
	portfolioValue := r.ledger.TotalValue(prices)

	summary := model.TradeSummary{TotalFees: decimal.Zero}
	for _, t := range r.history {
		summary.Total++
		switch t.Side {
		case model.ActionBuy:
			summary.BuyCount++
		case model.ActionSell:
			summary.SellCount++
		default:
			summary.HoldCount++
		}
		summary.TotalFees = summary.TotalFees.Add(t.Fee)
	}

	return model.EngineStatus{
		StepCount:      r.stepCount,
		Sentiment:      r.lastSentiment,
		Quantum:        r.lastQuantum,
		AIPrediction:   r.lastAI,
		Price:          r.lastPrice,
		Signal:         r.lastSignal,
		PortfolioValue: portfolioValue,
		ProfitLoss:     profitLoss(portfolioValue, r.initialBalance),
		TradeSummary:   summary,
	}
}

// Reset returns the runner and its ledger to a fresh state. A nil newBalance
// keeps the original initial balance.
func (r *Runner) Reset(newBalance *decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	balance := r.initialBalance
	if newBalance != nil {
		balance = *newBalance
	}
	if err := r.ledger.Restore(ledger.Snapshot{Cash: balance}); err != nil {
		return err
	}
	r.initialBalance = balance
	r.gate.SetInitialBalance(balance)
	r.stepCount = 0
	r.lastPrice = decimal.Zero
	r.lastSentiment = 0
	r.lastQuantum = 0
	r.lastAI = 0
	r.lastSignal = nil
	r.history = nil
	return nil
}

// Snapshot captures the runner's persistent state for the snapshot store.
func (r *Runner) Snapshot() (ledger.Snapshot, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Snapshot(), r.stepCount
}

// RestoreSnapshot loads previously persisted state into the runner.
func (r *Runner) RestoreSnapshot(snap ledger.Snapshot, stepCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ledger.Restore(snap); err != nil {
		return err
	}
	r.stepCount = stepCount
	return nil
}

func profitLoss(current, initial decimal.Decimal) model.ProfitLoss {
	pl := model.ProfitLoss{
		Absolute:     current.Sub(initial),
		CurrentValue: current,
		InitialValue: initial,
	}
	if initial.IsPositive() {
		pct, _ := current.Sub(initial).Div(initial).Float64()
		pl.Percentage = pct * 100
	}
	return pl
}
