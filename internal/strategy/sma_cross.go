package strategy

import (
	"github.com/shopspring/decimal"

	"paper-trader/internal/model"
)

// SMACrossStrategy signals on golden/death crosses of two simple moving
// averages.
type SMACrossStrategy struct {
	shortPeriod int
	longPeriod  int
	closes      []decimal.Decimal
}

func NewSMACrossStrategy(shortPeriod, longPeriod int) *SMACrossStrategy {
	return &SMACrossStrategy{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		closes:      make([]decimal.Decimal, 0, longPeriod+1),
	}
}

func (s *SMACrossStrategy) Name() string {
	return "sma_crossover"
}

func (s *SMACrossStrategy) OnCandle(candle model.KLine) model.Action {
	s.closes = append(s.closes, candle.Close)
	if len(s.closes) > s.longPeriod+1 {
		s.closes = s.closes[1:]
	}

	if len(s.closes) < s.longPeriod+1 {
		return model.ActionHold
	}

	shortMA := s.sma(s.shortPeriod, 0)
	longMA := s.sma(s.longPeriod, 0)
	prevShortMA := s.sma(s.shortPeriod, 1)
	prevLongMA := s.sma(s.longPeriod, 1)

	// Golden cross
	if prevShortMA.LessThanOrEqual(prevLongMA) && shortMA.GreaterThan(longMA) {
		return model.ActionBuy
	}
	// Death cross
	if prevShortMA.GreaterThanOrEqual(prevLongMA) && shortMA.LessThan(longMA) {
		return model.ActionSell
	}

	return model.ActionHold
}

func (s *SMACrossStrategy) sma(period, offset int) decimal.Decimal {
	sum := decimal.Zero
	end := len(s.closes) - offset
	for i := end - period; i < end; i++ {
		sum = sum.Add(s.closes[i])
	}
	return sum.Div(decimal.NewFromInt(int64(period)))
}
