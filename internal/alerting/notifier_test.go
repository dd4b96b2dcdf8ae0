package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"price-frame-monitor/internal/analysis"
)

func testNote() Notification {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return Notification{
		Title:    "Binance monitor",
		RunID:    "run-1",
		Symbol:   "BTCUSDT",
		Start:    start,
		End:      start.Add(15 * time.Minute),
		Interval: 5 * time.Minute,
		Summary: analysis.Summary{
			AvgMinPrice:      99.5,
			AvgMaxPrice:      101.5,
			AvgAvgPrice:      100.5,
			AvgPriceDiff:     2,
			AvgVolatilityPct: 1.99,
			OpeningPrice:     100,
			ClosingPrice:     101,
			PriceChangePct:   1,
			ChangeSign:       "+",
			FrameCount:       3,
			SampleCount:      900,
		},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Errorf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNote()); err != nil {
		t.Fatalf("telegram notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "BTCUSDT") {
		t.Fatalf("text should mention the symbol: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), testNote())
	if err == nil {
		t.Fatal("ok=false should fail")
	}
	var se *SendError
	if !errors.As(err, &se) || se.Channel != "telegram" {
		t.Fatalf("expected telegram SendError, got %v", err)
	}
}

func TestRenderSubject(t *testing.T) {
	got := renderSubject(testNote())
	want := "Binance monitor: Avg Volatility: 1.99%. Duration: 15.00 minutes. Interval: 5.00 minutes."
	if got != want {
		t.Fatalf("subject mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestRenderBody(t *testing.T) {
	body := renderBody(testNote())
	for _, want := range []string{
		"Monitoring for symbol BTCUSDT",
		"Price change: +1.00% (100.00 -> 101.00)",
		"Avg PriceDiff: 2.00",
		"Avg AvgPrice: 100.50",
		"Thresholds: none",
		"Run: run-1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	f.sent = append(f.sent, messages...)
	return f.err
}

func TestEmailNotifierSends(t *testing.T) {
	sender := &fakeSender{}
	n := newEmailNotifier(EmailOptions{From: "me@example.com", To: []string{"ops@example.com"}}, sender, testLogger())

	if err := n.Notify(context.Background(), testNote()); err != nil {
		t.Fatalf("notify should succeed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}

	rcpts, err := sender.sent[0].GetRecipients()
	if err != nil || len(rcpts) != 1 || rcpts[0] != "ops@example.com" {
		t.Fatalf("unexpected recipients %v (%v)", rcpts, err)
	}
	subject := sender.sent[0].GetGenHeader(mail.HeaderSubject)
	if len(subject) != 1 || !strings.HasPrefix(subject[0], "Binance monitor: Avg Volatility") {
		t.Fatalf("unexpected subject %v", subject)
	}
}

func TestEmailNotifierWrapsFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	n := newEmailNotifier(EmailOptions{From: "me@example.com", To: []string{"ops@example.com"}}, sender, testLogger())

	err := n.Notify(context.Background(), testNote())
	var se *SendError
	if !errors.As(err, &se) || se.Channel != "email" {
		t.Fatalf("expected email SendError, got %v", err)
	}
}

func TestNewEmailNotifierValidates(t *testing.T) {
	if _, err := NewEmailNotifier(EmailOptions{From: "me@example.com"}, testLogger()); err == nil {
		t.Fatal("missing host should fail")
	}
	if _, err := NewEmailNotifier(EmailOptions{Host: "smtp.example.com"}, testLogger()); err == nil {
		t.Fatal("missing sender should fail")
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(ctx context.Context, note Notification) error {
	c.calls++
	return c.err
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	failing := &countingNotifier{err: &SendError{Channel: "x", Err: errors.New("down")}}
	ok := &countingNotifier{}

	err := Fanout{failing, ok}.Notify(context.Background(), testNote())
	if err == nil {
		t.Fatal("fanout should surface the failure")
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Fatalf("every notifier should be called once: %d %d", failing.calls, ok.calls)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
