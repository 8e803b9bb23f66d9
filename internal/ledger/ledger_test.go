package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-trader/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestLedger(t *testing.T, cash string, policy ShortfallPolicy) *Ledger {
	t.Helper()
	l, err := New(dec(cash), policy)
	require.NoError(t, err)
	return l
}

func TestNew_RejectsNegativeCash(t *testing.T) {
	_, err := New(dec("-1"), PolicyStrict)
	assert.Error(t, err)
}

func TestApplyBuy(t *testing.T) {
	l := newTestLedger(t, "10000", PolicyStrict)

	trade, err := l.ApplyBuy("BTCUSDT", dec("100"), dec("10000"), dec("0.001"))
	require.NoError(t, err)

	// fee = 10000 * 0.001 = 10; qty = 9990 / 100 = 99.9
	assert.True(t, trade.Executed)
	assert.True(t, trade.Fee.Equal(dec("10")))
	assert.True(t, trade.Amount.Equal(dec("99.9")))
	assert.True(t, l.Cash().IsZero())
	assert.True(t, l.Position("BTCUSDT").Equal(dec("99.9")))
}

func TestApplySell(t *testing.T) {
	l := newTestLedger(t, "10000", PolicyStrict)
	_, err := l.ApplyBuy("BTCUSDT", dec("100"), dec("10000"), dec("0.001"))
	require.NoError(t, err)

	trade, err := l.ApplySell("BTCUSDT", dec("120"), dec("99.9"), dec("0.001"))
	require.NoError(t, err)

	// proceeds = 99.9 * 120 = 11988; fee = 11.988; cash = 11976.012
	assert.True(t, trade.Fee.Equal(dec("11.988")))
	assert.True(t, l.Cash().Equal(dec("11976.012")))
	assert.True(t, trade.PnL.IsPositive())
	// Position fully closed, entry removed.
	assert.True(t, l.Position("BTCUSDT").IsZero())
}

func TestValueConservation(t *testing.T) {
	l := newTestLedger(t, "10000", PolicyStrict)
	price := dec("250")
	prices := map[string]decimal.Decimal{"ETHUSDT": price}

	before := l.TotalValue(prices)
	trade, err := l.ApplyBuy("ETHUSDT", price, dec("4000"), dec("0.002"))
	require.NoError(t, err)

	after := l.TotalValue(prices)
	assert.True(t, after.Equal(before.Sub(trade.Fee)),
		"value after buy must equal value before minus fee, got %s vs %s", after, before.Sub(trade.Fee))

	before = after
	trade, err = l.ApplySell("ETHUSDT", price, dec("10"), dec("0.002"))
	require.NoError(t, err)

	after = l.TotalValue(prices)
	assert.True(t, after.Equal(before.Sub(trade.Fee)))
}

func TestApplyBuy_InsufficientFunds(t *testing.T) {
	l := newTestLedger(t, "100", PolicyStrict)

	_, err := l.ApplyBuy("BTCUSDT", dec("50"), dec("500"), dec("0.001"))
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	// State unchanged.
	assert.True(t, l.Cash().Equal(dec("100")))
	assert.True(t, l.Position("BTCUSDT").IsZero())
}

func TestApplySell_InsufficientHoldings(t *testing.T) {
	l := newTestLedger(t, "10000", PolicyStrict)
	_, err := l.ApplyBuy("BTCUSDT", dec("100"), dec("1000"), dec("0"))
	require.NoError(t, err)

	_, err = l.ApplySell("BTCUSDT", dec("100"), dec("20"), dec("0"))
	assert.True(t, errors.Is(err, ErrInsufficientHoldings))

	// State unchanged: still 10 units, 9000 cash.
	assert.True(t, l.Position("BTCUSDT").Equal(dec("10")))
	assert.True(t, l.Cash().Equal(dec("9000")))
}

func TestRejectPolicy(t *testing.T) {
	l := newTestLedger(t, "100", PolicyReject)

	trade, err := l.ApplyBuy("BTCUSDT", dec("50"), dec("500"), dec("0.001"))
	require.NoError(t, err)
	assert.False(t, trade.Executed)
	assert.Contains(t, trade.Reason, "insufficient funds")
	assert.True(t, l.Cash().Equal(dec("100")))

	trade, err = l.ApplySell("BTCUSDT", dec("50"), dec("1"), dec("0.001"))
	require.NoError(t, err)
	assert.False(t, trade.Executed)
	assert.Contains(t, trade.Reason, "insufficient holdings")
}

func TestApplyBuy_InvalidOrder(t *testing.T) {
	l := newTestLedger(t, "1000", PolicyStrict)

	_, err := l.ApplyBuy("BTCUSDT", dec("0"), dec("100"), dec("0.001"))
	assert.Error(t, err)

	_, err = l.ApplyBuy("BTCUSDT", dec("100"), dec("0"), dec("0.001"))
	assert.Error(t, err)

	_, err = l.ApplyBuy("BTCUSDT", dec("100"), dec("100"), dec("-0.001"))
	assert.Error(t, err)
}

func TestAverageCostBasis(t *testing.T) {
	l := newTestLedger(t, "10000", PolicyStrict)

	// Two buys at different prices, zero fee for round numbers:
	// 100 units @ 10 and 50 units @ 20 -> avg cost 2000/150.
	_, err := l.ApplyBuy("SOLUSDT", dec("10"), dec("1000"), dec("0"))
	require.NoError(t, err)
	_, err = l.ApplyBuy("SOLUSDT", dec("20"), dec("1000"), dec("0"))
	require.NoError(t, err)

	trade, err := l.ApplySell("SOLUSDT", dec("20"), dec("150"), dec("0"))
	require.NoError(t, err)

	// proceeds 3000 against cost 2000; the cost basis 2000/150 is not exact
	// in decimal, so compare within tolerance.
	pnl, _ := trade.PnL.Float64()
	assert.InDelta(t, 1000, pnl, 1e-9)
}

func TestTotalValue_MissingPriceContributesNothing(t *testing.T) {
	l := newTestLedger(t, "5000", PolicyStrict)
	_, err := l.ApplyBuy("BTCUSDT", dec("100"), dec("1000"), dec("0"))
	require.NoError(t, err)

	total := l.TotalValue(map[string]decimal.Decimal{})
	assert.True(t, total.Equal(dec("4000")))
}

func TestDepositWithdraw(t *testing.T) {
	l := newTestLedger(t, "1000", PolicyStrict)

	require.NoError(t, l.Deposit(dec("500")))
	assert.True(t, l.Cash().Equal(dec("1500")))

	require.NoError(t, l.Withdraw(dec("300")))
	assert.True(t, l.Cash().Equal(dec("1200")))

	assert.Error(t, l.Deposit(dec("-5")))
	assert.Error(t, l.Withdraw(dec("0")))
	assert.True(t, errors.Is(l.Withdraw(dec("5000")), ErrInsufficientFunds))
}

func TestSnapshotRestore(t *testing.T) {
	l := newTestLedger(t, "10000", PolicyStrict)
	_, err := l.ApplyBuy("BTCUSDT", dec("100"), dec("2000"), dec("0.001"))
	require.NoError(t, err)

	snap := l.Snapshot()

	// Mutating the snapshot maps must not leak into the ledger.
	snap.Positions["BTCUSDT"] = dec("999")
	assert.False(t, l.Position("BTCUSDT").Equal(dec("999")))
	snap.Positions["BTCUSDT"] = l.Position("BTCUSDT")

	fresh := newTestLedger(t, "0", PolicyStrict)
	require.NoError(t, fresh.Restore(snap))
	assert.True(t, fresh.Cash().Equal(l.Cash()))
	assert.True(t, fresh.Position("BTCUSDT").Equal(l.Position("BTCUSDT")))

	// Restored basis carries over: selling everything realizes the same PnL.
	sellA, err := l.ApplySell("BTCUSDT", dec("110"), l.Position("BTCUSDT"), dec("0.001"))
	require.NoError(t, err)
	sellB, err := fresh.ApplySell("BTCUSDT", dec("110"), fresh.Position("BTCUSDT"), dec("0.001"))
	require.NoError(t, err)
	assert.True(t, sellA.PnL.Equal(sellB.PnL))
}

func TestTradeSides(t *testing.T) {
	l := newTestLedger(t, "1000", PolicyStrict)

	buy, err := l.ApplyBuy("BTCUSDT", dec("10"), dec("100"), dec("0"))
	require.NoError(t, err)
	assert.Equal(t, model.ActionBuy, buy.Side)

	sell, err := l.ApplySell("BTCUSDT", dec("10"), dec("5"), dec("0"))
	require.NoError(t, err)
	assert.Equal(t, model.ActionSell, sell.Side)
}
