package fetcher

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceSource returns the current price of an instrument.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// FetchError wraps a failed price query. It is always transient from the
// sampler's point of view.
type FetchError struct {
	Source string
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s price from %s: %v", e.Symbol, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func fetchErr(source, symbol string, err error) error {
	return &FetchError{Source: source, Symbol: symbol, Err: err}
}
