package signal

import (
	"fmt"
	"math"

	"paper-trader/internal/model"
)

const (
	weightEpsilon = 1e-6

	buyThreshold  = 0.3
	sellThreshold = -0.3

	vetoConfidenceCap = 0.95
)

// Aggregator combines sentiment, quantum-indicator and AI-prediction scores
// into a single trade decision using weighted aggregation plus veto rules.
type Aggregator struct {
	sentimentWeight float64
	quantumWeight   float64
	aiWeight        float64
}

// NewAggregator validates that the weights are non-negative and sum to 1.0
// within epsilon. Invalid weights are a configuration error, never a
// per-call condition.
func NewAggregator(sentimentWeight, quantumWeight, aiWeight float64) (*Aggregator, error) {
	if sentimentWeight < 0 || quantumWeight < 0 || aiWeight < 0 {
		return nil, fmt.Errorf("weights must be non-negative, got %v/%v/%v",
			sentimentWeight, quantumWeight, aiWeight)
	}
	total := sentimentWeight + quantumWeight + aiWeight
	if math.Abs(total-1.0) > weightEpsilon {
		return nil, fmt.Errorf("weights must sum to 1.0, got %v", total)
	}
	return &Aggregator{
		sentimentWeight: sentimentWeight,
		quantumWeight:   quantumWeight,
		aiWeight:        aiWeight,
	}, nil
}

// DefaultAggregator uses the reference weights: sentiment 0.3, quantum 0.2, ai 0.5.
func DefaultAggregator() *Aggregator {
	agg, err := NewAggregator(0.3, 0.2, 0.5)
	if err != nil {
		panic(err)
	}
	return agg
}

// Aggregate produces a trade signal from the three advisory scores.
// Inputs outside [-1, 1] are clamped, not rejected.
func (a *Aggregator) Aggregate(sentiment, quantum, aiPrediction float64) model.TradeSignal {
	sentiment = clamp(sentiment)
	quantum = clamp(quantum)
	aiPrediction = clamp(aiPrediction)

	weightedScore := sentiment*a.sentimentWeight +
		quantum*a.quantumWeight +
		aiPrediction*a.aiWeight

	if action, reason, vetoed := applyVetoRules(sentiment, quantum, aiPrediction, weightedScore); vetoed {
		// Capped below 1.0 to mark the decision as rule-driven.
		confidence := math.Min(vetoConfidenceCap, math.Abs(weightedScore))
		return model.MustTradeSignal(action, confidence, reason)
	}

	var action model.Action
	var reason string
	switch {
	case weightedScore > buyThreshold:
		action = model.ActionBuy
		reason = "weighted score indicates bullish signal"
	case weightedScore < sellThreshold:
		action = model.ActionSell
		reason = "weighted score indicates bearish signal"
	default:
		action = model.ActionHold
		reason = "weighted score suggests neutral market"
	}

	confidence := math.Min(1.0, math.Abs(weightedScore))
	return model.MustTradeSignal(action, confidence, reason)
}

// applyVetoRules evaluates the veto rules in fixed priority order. The first
// matching rule short-circuits the threshold logic.
func applyVetoRules(sentiment, quantum, aiPrediction, weightedScore float64) (model.Action, string, bool) {
	// Rule 1: sentiment at a negative extreme is trusted over a marginal
	// weighted score to prevent buying into a panic.
	if sentiment < -0.8 {
		if weightedScore < -0.5 {
			return model.ActionSell, "veto: strong negative sentiment with negative overall signal", true
		}
		return model.ActionHold, "veto: strong negative sentiment prevents buying", true
	}

	// Rule 2: two independent signals agreeing on euphoria override a
	// merely moderate weighted score.
	if sentiment > 0.8 && aiPrediction > 0.6 {
		return model.ActionBuy, "veto: strong positive sentiment confirmed by AI", true
	}

	// Rule 3: an extreme single indicator wildly disagreeing with the
	// consensus is treated as noise.
	if math.Abs(quantum) > 0.9 && math.Abs(quantum-weightedScore) > 0.5 {
		return model.ActionHold, "veto: quantum indicator shows extreme divergence", true
	}

	return "", "", false
}

func clamp(v float64) float64 {
	return math.Max(-1.0, math.Min(1.0, v))
}
