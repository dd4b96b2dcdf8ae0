package fetcher

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrExhausted is returned by Static once every configured price was served.
var ErrExhausted = errors.New("static source exhausted")

// Static serves a fixed list of prices in order, one per call.
type Static struct {
	mu     sync.Mutex
	prices []decimal.Decimal
	next   int
}

// NewStatic returns a source replaying prices.
func NewStatic(prices ...decimal.Decimal) *Static {
	return &Static{prices: prices}
}

// CurrentPrice returns the next configured price.
func (s *Static) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.prices) {
		return decimal.Decimal{}, fetchErr("static", symbol, ErrExhausted)
	}
	price := s.prices[s.next]
	s.next++
	return price, nil
}

var _ PriceSource = (*Static)(nil)
