package strategy

import (
	"paper-trader/internal/model"
)

// BuyHoldStrategy buys on the first candle and holds. Useful as a baseline
// when comparing strategies.
type BuyHoldStrategy struct {
	bought bool
}

func NewBuyHoldStrategy() *BuyHoldStrategy {
	return &BuyHoldStrategy{}
}

func (s *BuyHoldStrategy) Name() string {
	return "buy_and_hold"
}

func (s *BuyHoldStrategy) OnCandle(model.KLine) model.Action {
	if !s.bought {
		s.bought = true
		return model.ActionBuy
	}
	return model.ActionHold
}
