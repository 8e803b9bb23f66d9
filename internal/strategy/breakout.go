package strategy

import (
	"github.com/shopspring/decimal"

	"paper-trader/internal/model"
)

// BreakoutStrategy buys when the close breaks above the recent high and
// sells when it breaks below the recent low. The current bar is excluded
// from the high/low window it is compared against.
type BreakoutStrategy struct {
	lookback  int
	threshold decimal.Decimal // multiplier, e.g. 1.02 for a 2% breakout
	highs     []decimal.Decimal
	lows      []decimal.Decimal
}

func NewBreakoutStrategy(lookback int, threshold float64) *BreakoutStrategy {
	return &BreakoutStrategy{
		lookback:  lookback,
		threshold: decimal.NewFromFloat(threshold),
		highs:     make([]decimal.Decimal, 0, lookback+1),
		lows:      make([]decimal.Decimal, 0, lookback+1),
	}
}

func (s *BreakoutStrategy) Name() string {
	return "breakout"
}

func (s *BreakoutStrategy) OnCandle(candle model.KLine) model.Action {
	action := model.ActionHold

	if len(s.highs) >= s.lookback {
		recentHigh := s.highs[0]
		recentLow := s.lows[0]
		for i := 1; i < len(s.highs); i++ {
			if s.highs[i].GreaterThan(recentHigh) {
				recentHigh = s.highs[i]
			}
			if s.lows[i].LessThan(recentLow) {
				recentLow = s.lows[i]
			}
		}

		if candle.Close.GreaterThan(recentHigh.Mul(s.threshold)) {
			action = model.ActionBuy
		} else if candle.Close.LessThan(recentLow.Div(s.threshold)) {
			action = model.ActionSell
		}
	}

	s.highs = append(s.highs, candle.High)
	s.lows = append(s.lows, candle.Low)
	if len(s.highs) > s.lookback {
		s.highs = s.highs[1:]
		s.lows = s.lows[1:]
	}

	return action
}
