package strategy

import (
	"paper-trader/internal/model"
)

// Strategy turns a stream of candles into trade actions. Implementations
// keep their own bounded window of recent bars; OnCandle is called once per
// bar in time order.
type Strategy interface {
	Name() string
	OnCandle(candle model.KLine) model.Action
}
