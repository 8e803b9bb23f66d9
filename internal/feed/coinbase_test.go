package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCoinbaseFeed_ConvertToModel(t *testing.T) {
	logger := zap.NewNop()
	c := NewCoinbaseFeed(logger, "BTC-USD")

	event := coinbaseMatchEvent{
		Type:      "match",
		TradeID:   555,
		ProductID: "BTC-USD",
		Price:     "50050.00",
		Size:      "0.25",
		Side:      "buy",
		Time:      "2021-12-22T00:00:00Z",
	}

	tick := c.convertToModel(event)

	assert.Equal(t, "555", tick.ID)
	assert.Equal(t, "coinbase", tick.Exchange)
	assert.True(t, tick.Price.Equal(decimal.NewFromFloat(50050.00)))
	assert.True(t, tick.Amount.Equal(decimal.NewFromFloat(0.25)))
	assert.Equal(t, "buy", tick.Side)
}

type fixedPrice struct {
	price decimal.Decimal
	err   error
}

func (f fixedPrice) FetchPrice(context.Context) (decimal.Decimal, error) {
	return f.price, f.err
}

func TestFallbackPriceSource(t *testing.T) {
	primary := fixedPrice{price: decimal.NewFromInt(100)}
	secondary := fixedPrice{price: decimal.NewFromInt(99)}

	src := NewFallbackPriceSource(primary, secondary)
	price, err := src.FetchPrice(context.Background())
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(100)))

	// Primary down: secondary serves.
	src = NewFallbackPriceSource(fixedPrice{err: errors.New("down")}, secondary)
	price, err = src.FetchPrice(context.Background())
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(99)))

	// Primary returning a non-positive price also falls through.
	src = NewFallbackPriceSource(fixedPrice{price: decimal.Zero}, secondary)
	price, err = src.FetchPrice(context.Background())
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(99)))

	// Both down: the secondary's error surfaces.
	src = NewFallbackPriceSource(fixedPrice{err: errors.New("down")}, fixedPrice{err: ErrNoPrice})
	_, err = src.FetchPrice(context.Background())
	assert.ErrorIs(t, err, ErrNoPrice)
}
