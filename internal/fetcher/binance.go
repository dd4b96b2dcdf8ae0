package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	binanceTickerPath = "/api/v3/ticker/price"
	binanceSource     = "binance"
)

// BinanceOptions parameterise the Binance ticker fetcher.
type BinanceOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Binance reads spot prices from the public Binance REST API.
type Binance struct {
	opts    BinanceOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewBinance constructs a Binance price source.
func NewBinance(opts BinanceOptions, logger zerolog.Logger) *Binance {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}

	return &Binance{
		opts:    opts,
		logger:  logger.With().Str("component", "binance_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// CurrentPrice queries the latest trade price for symbol.
func (b *Binance) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.Decimal{}, fetchErr(binanceSource, symbol, errors.New("symbol is required"))
	}

	endpoint := b.baseURL + binanceTickerPath + "?" + url.Values{"symbol": {symbol}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fetchErr(binanceSource, symbol, err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(b.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "pricemon/1.0")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fetchErr(binanceSource, symbol, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fetchErr(binanceSource, symbol, err)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fetchErr(binanceSource, symbol, parseBinanceError(resp.StatusCode, payload))
	}

	var ticker tickerPriceResponse
	if err := json.Unmarshal(payload, &ticker); err != nil {
		return decimal.Decimal{}, fetchErr(binanceSource, symbol, fmt.Errorf("decode ticker: %w", err))
	}

	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return decimal.Decimal{}, fetchErr(binanceSource, symbol, fmt.Errorf("parse price: %w", err))
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, fetchErr(binanceSource, symbol, fmt.Errorf("non-positive price %s", price))
	}

	return price, nil
}

type tickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type binanceErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func parseBinanceError(status int, payload []byte) error {
	var apiErr binanceErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Msg != "" {
		return fmt.Errorf("binance api error (%d): %s (code %d)", status, apiErr.Msg, apiErr.Code)
	}
	if len(payload) > 0 {
		return fmt.Errorf("binance api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("binance api error (%d)", status)
}

var _ PriceSource = (*Binance)(nil)
