package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/ledger"
	"paper-trader/internal/model"
	"paper-trader/internal/risk"
)

// tradeParams are the sizing knobs shared by the live runner and the
// backtester.
type tradeParams struct {
	symbol   string
	feeRate  decimal.Decimal
	tradePct decimal.Decimal
	minTrade decimal.Decimal // minimum order notional; smaller orders become HOLDs
}

func (p tradeParams) validate() error {
	if p.symbol == "" {
		return fmt.Errorf("symbol must not be empty")
	}
	if p.feeRate.IsNegative() {
		return fmt.Errorf("fee rate must be non-negative, got %s", p.feeRate)
	}
	if !p.tradePct.IsPositive() || p.tradePct.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("trade pct must be in (0, 1], got %s", p.tradePct)
	}
	if p.minTrade.IsNegative() {
		return fmt.Errorf("min trade amount must be non-negative, got %s", p.minTrade)
	}
	return nil
}

// executeDecision applies one trade signal against the ledger under the risk
// gate. Every outcome produces exactly one trade record: fills keep their
// side, while HOLDs, risk rejections and unfillable orders are logged as
// HOLD records so the history is a complete audit trail of the cycle.
//
// ID and Timestamp of the returned record are stamped by the caller: the
// live runner uses wall clock and random ids, the backtester uses the row
// timestamp and a sequential id to stay deterministic.
func executeDecision(led *ledger.Ledger, gate *risk.Gate, params tradeParams, sig model.TradeSignal, price decimal.Decimal) model.Trade {
	prices := map[string]decimal.Decimal{params.symbol: price}

	switch sig.Action {
	case model.ActionBuy:
		spend := led.Cash().Mul(params.tradePct)
		if spend.LessThan(params.minTrade) {
			return holdRecord(led, params.symbol, price,
				fmt.Sprintf("insufficient balance for BUY: %s below minimum %s", spend.Round(2), params.minTrade))
		}
		if ok, reason := gate.Approve(led, model.ActionBuy, spend, prices); !ok {
			infrastructure.RiskRejections.Inc()
			return holdRecord(led, params.symbol, price, "risk rejected: "+reason)
		}
		trade, err := led.ApplyBuy(params.symbol, price, spend, params.feeRate)
		if err != nil {
			// A failed order is a normal market outcome, not a bug.
			return holdRecord(led, params.symbol, price, err.Error())
		}
		if !trade.Executed {
			return holdRecord(led, params.symbol, price, trade.Reason)
		}
		trade.Reason = sig.Reason
		return trade

	case model.ActionSell:
		qty := led.Position(params.symbol).Mul(params.tradePct)
		if !qty.IsPositive() {
			return holdRecord(led, params.symbol, price, "no assets to sell")
		}
		if notional := qty.Mul(price); notional.LessThan(params.minTrade) {
			return holdRecord(led, params.symbol, price,
				fmt.Sprintf("sale amount too small: %s below minimum %s", notional.Round(2), params.minTrade))
		}
		if ok, reason := gate.Approve(led, model.ActionSell, qty.Mul(price), prices); !ok {
			infrastructure.RiskRejections.Inc()
			return holdRecord(led, params.symbol, price, "risk rejected: "+reason)
		}
		trade, err := led.ApplySell(params.symbol, price, qty, params.feeRate)
		if err != nil {
			return holdRecord(led, params.symbol, price, err.Error())
		}
		if !trade.Executed {
			return holdRecord(led, params.symbol, price, trade.Reason)
		}
		trade.Reason = sig.Reason
		return trade

	default:
		return holdRecord(led, params.symbol, price, sig.Reason)
	}
}

func holdRecord(led *ledger.Ledger, symbol string, price decimal.Decimal, reason string) model.Trade {
	return model.Trade{
		Symbol:        symbol,
		Side:          model.ActionHold,
		Price:         price,
		Amount:        decimal.Zero,
		Fee:           decimal.Zero,
		CashAfter:     led.Cash(),
		PositionAfter: led.Position(symbol),
		Executed:      false,
		Reason:        reason,
	}
}
