package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"paper-trader/internal/ledger"
	"paper-trader/internal/model"
)

// Limits holds the position-sizing and drawdown bounds, both as fractions
// in (0, 1].
type Limits struct {
	MaxPositionSizePct float64
	MaxDrawdownPct     float64
}

func (l Limits) validate() error {
	if l.MaxPositionSizePct <= 0 || l.MaxPositionSizePct > 1 {
		return fmt.Errorf("max position size pct must be in (0, 1], got %v", l.MaxPositionSizePct)
	}
	if l.MaxDrawdownPct <= 0 || l.MaxDrawdownPct > 1 {
		return fmt.Errorf("max drawdown pct must be in (0, 1], got %v", l.MaxDrawdownPct)
	}
	return nil
}

// Gate validates proposed trades against the limits before the ledger applies
// them. It is purely advisory and never mutates the ledger.
type Gate struct {
	limits         Limits
	initialBalance decimal.Decimal
	baselineSet    bool
}

func NewGate(limits Limits) (*Gate, error) {
	if err := limits.validate(); err != nil {
		return nil, err
	}
	return &Gate{limits: limits}, nil
}

// SetInitialBalance records the drawdown baseline. Until it is called,
// drawdown checks pass trivially: there is nothing to compare against yet.
func (g *Gate) SetInitialBalance(balance decimal.Decimal) {
	g.initialBalance = balance
	g.baselineSet = balance.IsPositive()
}

// Approve reports whether a proposed trade passes the risk rules, with a
// reason on rejection.
//
// Position sizing applies to BUY only. The drawdown breach also blocks BUY
// only: a SELL reduces exposure and must stay available to cut losses, so
// blocking it on drawdown grounds would lock a losing position in place.
func (g *Gate) Approve(l *ledger.Ledger, side model.Action, proposedValue decimal.Decimal, prices map[string]decimal.Decimal) (bool, string) {
	if side != model.ActionBuy {
		return true, ""
	}

	totalValue := l.TotalValue(prices)
	if !totalValue.IsPositive() {
		return false, "portfolio value is non-positive"
	}

	sizePct := proposedValue.Div(totalValue)
	if sizePct.GreaterThan(decimal.NewFromFloat(g.limits.MaxPositionSizePct)) {
		return false, fmt.Sprintf("position size %s exceeds limit %v", sizePct.Round(4), g.limits.MaxPositionSizePct)
	}

	if g.baselineSet {
		drawdown := g.initialBalance.Sub(totalValue).Div(g.initialBalance)
		if drawdown.GreaterThan(decimal.NewFromFloat(g.limits.MaxDrawdownPct)) {
			return false, fmt.Sprintf("drawdown %s exceeds limit %v", drawdown.Round(4), g.limits.MaxDrawdownPct)
		}
	}

	return true, ""
}
