package model

import "fmt"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// TradeSignal is the immutable result of signal aggregation. Confidence is
// used downstream for position sizing, so out-of-range values are rejected
// at construction rather than clamped.
type TradeSignal struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

func NewTradeSignal(action Action, confidence float64, reason string) (TradeSignal, error) {
	if confidence < 0.0 || confidence > 1.0 {
		return TradeSignal{}, fmt.Errorf("confidence must be between 0.0 and 1.0, got %v", confidence)
	}
	return TradeSignal{Action: action, Confidence: confidence, Reason: reason}, nil
}

// MustTradeSignal panics on an out-of-range confidence. Confidence bounds
// hold by construction everywhere the aggregator produces a signal, so a
// panic here is a programming error, not a runtime condition.
func MustTradeSignal(action Action, confidence float64, reason string) TradeSignal {
	sig, err := NewTradeSignal(action, confidence, reason)
	if err != nil {
		panic(err)
	}
	return sig
}
