package strategy

import (
	"fmt"
)

func intParam(config map[string]interface{}, key string, fallback int) int {
	if v, ok := config[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func floatParam(config map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := config[key].(float64); ok {
		return v
	}
	return fallback
}

// NewStrategy builds a strategy from its type name and a JSON-decoded config
// map. Missing parameters fall back to the conventional defaults.
func NewStrategy(strategyType string, config map[string]interface{}) (Strategy, error) {
	switch strategyType {
	case "sma_crossover":
		short := intParam(config, "short_period", 10)
		long := intParam(config, "long_period", 30)
		if short <= 0 || long <= short {
			return nil, fmt.Errorf("invalid config for sma_crossover: need 0 < short_period < long_period")
		}
		return NewSMACrossStrategy(short, long), nil
	case "rsi":
		period := intParam(config, "period", 14)
		oversold := floatParam(config, "oversold", 30)
		overbought := floatParam(config, "overbought", 70)
		if period <= 0 || oversold >= overbought {
			return nil, fmt.Errorf("invalid config for rsi: need period > 0 and oversold < overbought")
		}
		return NewRSIStrategy(period, oversold, overbought), nil
	case "momentum":
		lookback := intParam(config, "lookback", 20)
		threshold := floatParam(config, "threshold", 0.02)
		if lookback <= 0 || threshold <= 0 {
			return nil, fmt.Errorf("invalid config for momentum: need lookback > 0 and threshold > 0")
		}
		return NewMomentumStrategy(lookback, threshold), nil
	case "breakout":
		lookback := intParam(config, "lookback", 20)
		threshold := floatParam(config, "threshold", 1.02)
		if lookback <= 0 || threshold < 1 {
			return nil, fmt.Errorf("invalid config for breakout: need lookback > 0 and threshold >= 1")
		}
		return NewBreakoutStrategy(lookback, threshold), nil
	case "mean_reversion":
		lookback := intParam(config, "lookback", 20)
		numStd := floatParam(config, "num_std", 2.0)
		if lookback <= 0 || numStd <= 0 {
			return nil, fmt.Errorf("invalid config for mean_reversion: need lookback > 0 and num_std > 0")
		}
		return NewMeanReversionStrategy(lookback, numStd), nil
	case "buy_and_hold":
		return NewBuyHoldStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown strategy type: %s", strategyType)
	}
}
