package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paper-trader/internal/model"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)

// positionEpsilon is the tolerance under which a position counts as closed
// and its entry is removed. Absence of an entry means "no position", which is
// indistinguishable from zero size on purpose.
var positionEpsilon = decimal.New(1, -12)

// ShortfallPolicy controls how the ledger reports an order it cannot fill.
type ShortfallPolicy int

const (
	// PolicyStrict surfaces ErrInsufficientFunds / ErrInsufficientHoldings.
	PolicyStrict ShortfallPolicy = iota
	// PolicyReject returns an unexecuted Trade with a reason and no error,
	// since a failed order is a normal market outcome for most callers.
	PolicyReject
)

type position struct {
	qty     decimal.Decimal
	avgCost decimal.Decimal // cash spent per unit, fee included
}

// Ledger tracks cash and per-symbol positions of a simulated account.
// Cash plus position valuation at market prices equals the initial balance
// plus realized PnL minus cumulative fees; every mutation is all-or-nothing.
//
// The ledger is not safe for concurrent use. Exactly one control flow (the
// live runner or the backtester) mutates it.
type Ledger struct {
	cash      decimal.Decimal
	positions map[string]position
	policy    ShortfallPolicy
}

// Snapshot is a deep copy of the ledger state, usable for persistence and
// for restoring a run.
type Snapshot struct {
	Cash      decimal.Decimal            `json:"cash"`
	Positions map[string]decimal.Decimal `json:"positions"`
	AvgCosts  map[string]decimal.Decimal `json:"avg_costs"`
}

func New(initialCash decimal.Decimal, policy ShortfallPolicy) (*Ledger, error) {
	if initialCash.IsNegative() {
		return nil, fmt.Errorf("initial cash must be non-negative, got %s", initialCash)
	}
	return &Ledger{
		cash:      initialCash,
		positions: make(map[string]position),
		policy:    policy,
	}, nil
}

func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// Position returns the held quantity for a symbol, zero if absent.
func (l *Ledger) Position(symbol string) decimal.Decimal {
	return l.positions[symbol].qty
}

// Deposit adds cash to the account.
func (l *Ledger) Deposit(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.IsZero() {
		return fmt.Errorf("deposit must be positive, got %s", amount)
	}
	l.cash = l.cash.Add(amount)
	return nil
}

// Withdraw removes cash from the account.
func (l *Ledger) Withdraw(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.IsZero() {
		return fmt.Errorf("withdrawal must be positive, got %s", amount)
	}
	if amount.GreaterThan(l.cash) {
		return ErrInsufficientFunds
	}
	l.cash = l.cash.Sub(amount)
	return nil
}

// ApplyBuy spends cashToSpend on the symbol at the given price. The fee is
// taken out of cashToSpend before conversion, so cash decreases by exactly
// cashToSpend.
func (l *Ledger) ApplyBuy(symbol string, price, cashToSpend, feeRate decimal.Decimal) (model.Trade, error) {
	if err := validateOrder(price, cashToSpend, feeRate); err != nil {
		return model.Trade{}, err
	}
	if cashToSpend.GreaterThan(l.cash) {
		return l.shortfall(symbol, price, model.ActionBuy,
			fmt.Sprintf("insufficient funds: need %s, have %s", cashToSpend, l.cash),
			ErrInsufficientFunds)
	}

	fee := cashToSpend.Mul(feeRate)
	qty := cashToSpend.Sub(fee).Div(price)

	pos := l.positions[symbol]
	newQty := pos.qty.Add(qty)
	// Average cost blends the previous basis with this purchase, fee included.
	totalCost := pos.avgCost.Mul(pos.qty).Add(cashToSpend)
	pos.avgCost = totalCost.Div(newQty)
	pos.qty = newQty
	l.positions[symbol] = pos
	l.cash = l.cash.Sub(cashToSpend)

	return model.Trade{
		ID:            uuid.NewString(),
		Timestamp:     time.Now(),
		Symbol:        symbol,
		Side:          model.ActionBuy,
		Price:         price,
		Amount:        qty,
		Fee:           fee,
		CashAfter:     l.cash,
		PositionAfter: pos.qty,
		Executed:      true,
	}, nil
}

// ApplySell sells qty of the symbol at the given price. The fee is deducted
// from the proceeds. The realized PnL is recorded against the average cost
// basis of the position.
func (l *Ledger) ApplySell(symbol string, price, qty, feeRate decimal.Decimal) (model.Trade, error) {
	if err := validateOrder(price, qty, feeRate); err != nil {
		return model.Trade{}, err
	}
	pos, ok := l.positions[symbol]
	if !ok || qty.GreaterThan(pos.qty) {
		return l.shortfall(symbol, price, model.ActionSell,
			fmt.Sprintf("insufficient holdings: need %s, have %s", qty, pos.qty),
			ErrInsufficientHoldings)
	}

	proceeds := qty.Mul(price)
	fee := proceeds.Mul(feeRate)
	pnl := proceeds.Sub(fee).Sub(qty.Mul(pos.avgCost))

	l.cash = l.cash.Add(proceeds).Sub(fee)
	pos.qty = pos.qty.Sub(qty)
	if pos.qty.Abs().LessThan(positionEpsilon) {
		delete(l.positions, symbol)
		pos.qty = decimal.Zero
	} else {
		l.positions[symbol] = pos
	}

	return model.Trade{
		ID:            uuid.NewString(),
		Timestamp:     time.Now(),
		Symbol:        symbol,
		Side:          model.ActionSell,
		Price:         price,
		Amount:        qty,
		Fee:           fee,
		PnL:           pnl,
		CashAfter:     l.cash,
		PositionAfter: pos.qty,
		Executed:      true,
	}, nil
}

// TotalValue sums cash plus the valuation of every position. A symbol with
// no quoted price contributes nothing; conservative, and a deliberate choice
// rather than assuming a stale price.
func (l *Ledger) TotalValue(prices map[string]decimal.Decimal) decimal.Decimal {
	total := l.cash
	for symbol, pos := range l.positions {
		if price, ok := prices[symbol]; ok {
			total = total.Add(pos.qty.Mul(price))
		}
	}
	return total
}

func (l *Ledger) Snapshot() Snapshot {
	snap := Snapshot{
		Cash:      l.cash,
		Positions: make(map[string]decimal.Decimal, len(l.positions)),
		AvgCosts:  make(map[string]decimal.Decimal, len(l.positions)),
	}
	for symbol, pos := range l.positions {
		snap.Positions[symbol] = pos.qty
		snap.AvgCosts[symbol] = pos.avgCost
	}
	return snap
}

// Restore replaces the ledger state with a previously taken snapshot.
func (l *Ledger) Restore(snap Snapshot) error {
	if snap.Cash.IsNegative() {
		return fmt.Errorf("snapshot cash must be non-negative, got %s", snap.Cash)
	}
	positions := make(map[string]position, len(snap.Positions))
	for symbol, qty := range snap.Positions {
		if qty.IsNegative() {
			return fmt.Errorf("snapshot position %s must be non-negative, got %s", symbol, qty)
		}
		if qty.Abs().LessThan(positionEpsilon) {
			continue
		}
		positions[symbol] = position{qty: qty, avgCost: snap.AvgCosts[symbol]}
	}
	l.cash = snap.Cash
	l.positions = positions
	return nil
}

// shortfall reports an unfillable order according to the configured policy.
func (l *Ledger) shortfall(symbol string, price decimal.Decimal, side model.Action, reason string, err error) (model.Trade, error) {
	if l.policy == PolicyReject {
		return model.Trade{
			ID:            uuid.NewString(),
			Timestamp:     time.Now(),
			Symbol:        symbol,
			Side:          side,
			Price:         price,
			CashAfter:     l.cash,
			PositionAfter: l.positions[symbol].qty,
			Executed:      false,
			Reason:        reason,
		}, nil
	}
	return model.Trade{}, fmt.Errorf("%s %s: %w", side, symbol, err)
}

func validateOrder(price, size, feeRate decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("price must be positive, got %s", price)
	}
	if !size.IsPositive() {
		return fmt.Errorf("order size must be positive, got %s", size)
	}
	if feeRate.IsNegative() {
		return fmt.Errorf("fee rate must be non-negative, got %s", feeRate)
	}
	return nil
}
