package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestBinanceMissingSymbol(t *testing.T) {
	b := NewBinance(BinanceOptions{}, noopLogger())
	if _, err := b.CurrentPrice(context.Background(), "  "); err == nil {
		t.Fatal("empty symbol should fail")
	}
}

func TestBinanceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": -1121, "msg": "Invalid symbol."})
	}))
	defer srv.Close()

	b := NewBinance(BinanceOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := b.CurrentPrice(context.Background(), "NOPE")
	if err == nil {
		t.Fatal("HTTP 400 should fail")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.Symbol != "NOPE" || fe.Source != "binance" {
		t.Fatalf("unexpected fetch error fields: %+v", fe)
	}
}

func TestBinanceSuccess(t *testing.T) {
	var gotSymbol, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotSymbol = r.URL.Query().Get("symbol")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"symbol": "BTCUSDT", "price": "64123.45000000"})
	}))
	defer srv.Close()

	b := NewBinance(BinanceOptions{BaseURL: srv.URL + "/", Timeout: time.Second, UserAgent: "test"}, noopLogger())
	price, err := b.CurrentPrice(context.Background(), "btcusdt")
	if err != nil {
		t.Fatalf("successful response should not fail: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("64123.45")) {
		t.Fatalf("expected 64123.45, got %s", price)
	}
	if gotSymbol != "BTCUSDT" {
		t.Fatalf("symbol should be upper-cased, got %q", gotSymbol)
	}
	if gotUA != "test" {
		t.Fatalf("user agent not forwarded, got %q", gotUA)
	}
}

func TestBinanceRejectsZeroPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"symbol": "X", "price": "0.00000000"})
	}))
	defer srv.Close()

	b := NewBinance(BinanceOptions{BaseURL: srv.URL}, noopLogger())
	if _, err := b.CurrentPrice(context.Background(), "X"); err == nil {
		t.Fatal("zero price should fail")
	}
}

func TestVaultMissingConfig(t *testing.T) {
	v := NewVault(VaultOptions{}, noopLogger())
	if _, err := v.CurrentPrice(context.Background(), "0x9D39A5DE30e57443BfF2A8307A4256c8797A3497"); err == nil {
		t.Fatal("missing RPC URL should fail")
	}

	v = NewVault(VaultOptions{RPCURL: "http://localhost"}, noopLogger())
	if _, err := v.CurrentPrice(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("non-address symbol should fail")
	}
}

func TestStaticExhausts(t *testing.T) {
	s := NewStatic(decimal.NewFromInt(1), decimal.NewFromInt(2))
	for want := int64(1); want <= 2; want++ {
		got, err := s.CurrentPrice(context.Background(), "X")
		if err != nil || !got.Equal(decimal.NewFromInt(want)) {
			t.Fatalf("expected %d, got %s (%v)", want, got, err)
		}
	}
	if _, err := s.CurrentPrice(context.Background(), "X"); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}
