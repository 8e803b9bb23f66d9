package strategy

import (
	"paper-trader/internal/model"
)

// RSIStrategy buys when the relative strength index drops below the oversold
// threshold and sells above the overbought threshold.
type RSIStrategy struct {
	period     int
	oversold   float64
	overbought float64
	closes     []float64
}

func NewRSIStrategy(period int, oversold, overbought float64) *RSIStrategy {
	return &RSIStrategy{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
		closes:     make([]float64, 0, period+2),
	}
}

func (s *RSIStrategy) Name() string {
	return "rsi"
}

func (s *RSIStrategy) OnCandle(candle model.KLine) model.Action {
	close, _ := candle.Close.Float64()
	s.closes = append(s.closes, close)
	if len(s.closes) > s.period+1 {
		s.closes = s.closes[1:]
	}

	if len(s.closes) < s.period+1 {
		return model.ActionHold
	}

	rsi := s.rsi()
	if rsi < s.oversold {
		return model.ActionBuy
	}
	if rsi > s.overbought {
		return model.ActionSell
	}
	return model.ActionHold
}

func (s *RSIStrategy) rsi() float64 {
	var avgGain, avgLoss float64
	for i := 1; i < len(s.closes); i++ {
		change := s.closes[i] - s.closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(s.period)
	avgLoss /= float64(s.period)

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
