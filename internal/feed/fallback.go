package feed

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource matches the engine's price source contract.
type PriceSource interface {
	FetchPrice(ctx context.Context) (decimal.Decimal, error)
}

// FallbackPriceSource serves the primary feed's price and falls back to the
// secondary when the primary has nothing usable.
type FallbackPriceSource struct {
	primary   PriceSource
	secondary PriceSource
}

func NewFallbackPriceSource(primary, secondary PriceSource) *FallbackPriceSource {
	return &FallbackPriceSource{primary: primary, secondary: secondary}
}

func (f *FallbackPriceSource) FetchPrice(ctx context.Context) (decimal.Decimal, error) {
	price, err := f.primary.FetchPrice(ctx)
	if err == nil && price.IsPositive() {
		return price, nil
	}
	return f.secondary.FetchPrice(ctx)
}
