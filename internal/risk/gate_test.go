package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-trader/internal/ledger"
	"paper-trader/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newGate(t *testing.T, maxPos, maxDD float64) *Gate {
	t.Helper()
	g, err := NewGate(Limits{MaxPositionSizePct: maxPos, MaxDrawdownPct: maxDD})
	require.NoError(t, err)
	return g
}

func newLedger(t *testing.T, cash string) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(dec(cash), ledger.PolicyStrict)
	require.NoError(t, err)
	return l
}

func TestNewGate_LimitValidation(t *testing.T) {
	valid := Limits{MaxPositionSizePct: 0.25, MaxDrawdownPct: 0.2}
	_, err := NewGate(valid)
	assert.NoError(t, err)

	for _, limits := range []Limits{
		{MaxPositionSizePct: 0, MaxDrawdownPct: 0.2},
		{MaxPositionSizePct: 1.5, MaxDrawdownPct: 0.2},
		{MaxPositionSizePct: 0.25, MaxDrawdownPct: 0},
		{MaxPositionSizePct: 0.25, MaxDrawdownPct: -0.1},
	} {
		_, err := NewGate(limits)
		assert.Error(t, err)
	}
}

func TestApprove_PositionSize(t *testing.T) {
	g := newGate(t, 0.25, 0.99)
	l := newLedger(t, "10000")
	prices := map[string]decimal.Decimal{}

	ok, _ := g.Approve(l, model.ActionBuy, dec("2500"), prices)
	assert.True(t, ok)

	ok, reason := g.Approve(l, model.ActionBuy, dec("2600"), prices)
	assert.False(t, ok)
	assert.Contains(t, reason, "position size")
}

func TestApprove_SellNeverSizeChecked(t *testing.T) {
	g := newGate(t, 0.1, 0.99)
	l := newLedger(t, "10000")

	// A sell of any size is reducing risk and passes.
	ok, _ := g.Approve(l, model.ActionSell, dec("9999"), nil)
	assert.True(t, ok)
	ok, _ = g.Approve(l, model.ActionHold, decimal.Zero, nil)
	assert.True(t, ok)
}

func TestApprove_DrawdownGate(t *testing.T) {
	g := newGate(t, 1.0, 0.2)
	g.SetInitialBalance(dec("10000"))

	// Ledger valuation 7500: drawdown 25% > 20%, every BUY is rejected.
	l := newLedger(t, "7500")
	ok, reason := g.Approve(l, model.ActionBuy, dec("10"), nil)
	assert.False(t, ok)
	assert.Contains(t, reason, "drawdown")

	// SELL stays available to cut losses.
	ok, _ = g.Approve(l, model.ActionSell, dec("10"), nil)
	assert.True(t, ok)
}

func TestApprove_DrawdownWithinLimit(t *testing.T) {
	g := newGate(t, 1.0, 0.2)
	g.SetInitialBalance(dec("10000"))

	l := newLedger(t, "8500")
	ok, _ := g.Approve(l, model.ActionBuy, dec("10"), nil)
	assert.True(t, ok)
}

func TestApprove_NoBaselinePassesTrivially(t *testing.T) {
	g := newGate(t, 1.0, 0.2)

	// No initial balance recorded: only the sizing rule applies.
	l := newLedger(t, "100")
	ok, _ := g.Approve(l, model.ActionBuy, dec("50"), nil)
	assert.True(t, ok)
}

func TestApprove_NonPositiveValue(t *testing.T) {
	g := newGate(t, 1.0, 0.99)
	l := newLedger(t, "0")

	ok, reason := g.Approve(l, model.ActionBuy, dec("10"), nil)
	assert.False(t, ok)
	assert.Contains(t, reason, "non-positive")
}

func TestApprove_PositionValuationUsesPrices(t *testing.T) {
	g := newGate(t, 0.25, 0.99)
	l := newLedger(t, "10000")
	_, err := l.ApplyBuy("BTCUSDT", dec("100"), dec("5000"), dec("0"))
	require.NoError(t, err)

	// With the position priced, total value is back to 10000 and a 2500 buy fits.
	prices := map[string]decimal.Decimal{"BTCUSDT": dec("100")}
	ok, _ := g.Approve(l, model.ActionBuy, dec("2500"), prices)
	assert.True(t, ok)

	// Without a quote the position counts for nothing and the same buy is too big.
	ok, _ = g.Approve(l, model.ActionBuy, dec("2500"), nil)
	assert.False(t, ok)
}
