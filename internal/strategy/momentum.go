package strategy

import (
	"paper-trader/internal/model"
)

// MomentumStrategy buys when the price runs ahead of its lookback average by
// more than the threshold, and sells when it lags by the same margin.
type MomentumStrategy struct {
	lookback  int
	threshold float64
	closes    []float64
}

func NewMomentumStrategy(lookback int, threshold float64) *MomentumStrategy {
	return &MomentumStrategy{
		lookback:  lookback,
		threshold: threshold,
		closes:    make([]float64, 0, lookback+1),
	}
}

func (s *MomentumStrategy) Name() string {
	return "momentum"
}

func (s *MomentumStrategy) OnCandle(candle model.KLine) model.Action {
	close, _ := candle.Close.Float64()
	s.closes = append(s.closes, close)
	if len(s.closes) > s.lookback {
		s.closes = s.closes[1:]
	}

	if len(s.closes) < s.lookback {
		return model.ActionHold
	}

	var sum float64
	for _, c := range s.closes {
		sum += c
	}
	avg := sum / float64(s.lookback)
	momentum := (close - avg) / avg

	if momentum > s.threshold {
		return model.ActionBuy
	}
	if momentum < -s.threshold {
		return model.ActionSell
	}
	return model.ActionHold
}
