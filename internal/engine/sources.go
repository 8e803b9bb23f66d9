package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// ScoreSource supplies one advisory score per call, conceptually in [-1, 1].
// Each source faults independently; the runner substitutes a neutral 0.0 on
// error and keeps the cycle going.
type ScoreSource interface {
	FetchScore(ctx context.Context) (float64, error)
}

// PriceSource supplies the current market price. A non-positive price is
// treated as invalid and the runner falls back to the last good one.
type PriceSource interface {
	FetchPrice(ctx context.Context) (decimal.Decimal, error)
}

// ScoreFunc adapts a plain function to a ScoreSource.
type ScoreFunc func(ctx context.Context) (float64, error)

func (f ScoreFunc) FetchScore(ctx context.Context) (float64, error) { return f(ctx) }

// PriceFunc adapts a plain function to a PriceSource.
type PriceFunc func(ctx context.Context) (decimal.Decimal, error)

func (f PriceFunc) FetchPrice(ctx context.Context) (decimal.Decimal, error) { return f(ctx) }

// StaticScore always returns the same value. Handy for demos and tests.
func StaticScore(v float64) ScoreSource {
	return ScoreFunc(func(context.Context) (float64, error) { return v, nil })
}
