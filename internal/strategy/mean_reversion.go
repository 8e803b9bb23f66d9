package strategy

import (
	"math"

	"paper-trader/internal/model"
)

// MeanReversionStrategy trades Bollinger-band style reversion: buy below the
// lower band, sell above the upper band.
type MeanReversionStrategy struct {
	lookback int
	numStd   float64
	closes   []float64
}

func NewMeanReversionStrategy(lookback int, numStd float64) *MeanReversionStrategy {
	return &MeanReversionStrategy{
		lookback: lookback,
		numStd:   numStd,
		closes:   make([]float64, 0, lookback+1),
	}
}

func (s *MeanReversionStrategy) Name() string {
	return "mean_reversion"
}

func (s *MeanReversionStrategy) OnCandle(candle model.KLine) model.Action {
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
	mean := sum / float64(s.lookback)

	var variance float64
	for _, c := range s.closes {
		variance += (c - mean) * (c - mean)
	}
	std := math.Sqrt(variance / float64(s.lookback))

	upper := mean + s.numStd*std
	lower := mean - s.numStd*std

	if close < lower {
		return model.ActionBuy
	}
	if close > upper {
		return model.ActionSell
	}
	return model.ActionHold
}
