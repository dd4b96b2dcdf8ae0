package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"price-frame-monitor/internal/analysis"
)

// Notification carries a finished run to the notifiers.
type Notification struct {
	Title      string
	RunID      string
	Symbol     string
	Start      time.Time
	End        time.Time
	Interval   time.Duration
	Summary    analysis.Summary
	Thresholds Thresholds
	Location   *time.Location
}

// Duration is the length of the monitored window.
func (n Notification) Duration() time.Duration {
	return n.End.Sub(n.Start)
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// SendError reports a failed delivery on one channel.
type SendError struct {
	Channel string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s notification: %v", e.Channel, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Fanout delivers to every channel and joins the failures.
type Fanout []Notifier

// Notify sends note on every channel, continuing past failures.
func (f Fanout) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered summary.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	if err := n.send(ctx, note); err != nil {
		return &SendError{Channel: "telegram", Err: err}
	}
	n.logger.Info().Str("run_id", note.RunID).Str("symbol", note.Symbol).Msg("notification sent (telegram)")
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderSubject(note) + "\n\n" + renderBody(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return errors.New("telegram returned ok=false")
	}
	return nil
}

func renderSubject(note Notification) string {
	title := note.Title
	if title == "" {
		title = "Price monitor"
	}
	return fmt.Sprintf("%s: Avg Volatility: %s%%. Duration: %s minutes. Interval: %s minutes.",
		title,
		analysis.Fixed(note.Summary.AvgVolatilityPct, 2),
		analysis.Fixed(note.Duration().Minutes(), 2),
		analysis.Fixed(note.Interval.Minutes(), 2),
	)
}

func renderBody(note Notification) string {
	loc := note.Location
	if loc == nil {
		loc = time.UTC
	}
	s := note.Summary

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("Monitoring for symbol %s started at %s and completed at %s with the following results:\n",
		note.Symbol,
		note.Start.In(loc).Format(time.RFC1123),
		note.End.In(loc).Format(time.RFC1123),
	))
	builder.WriteString(fmt.Sprintf("Price change: %s (%s -> %s)\n", s.SignedChange(), analysis.Fixed(s.OpeningPrice, 2), analysis.Fixed(s.ClosingPrice, 2)))
	builder.WriteString(fmt.Sprintf("Avg Volatility: %s%%\n", analysis.Fixed(s.AvgVolatilityPct, 2)))
	builder.WriteString(fmt.Sprintf("Avg PriceDiff: %s\n", analysis.Fixed(s.AvgPriceDiff, 2)))
	builder.WriteString(fmt.Sprintf("Avg MinPrice: %s\n", analysis.Fixed(s.AvgMinPrice, 2)))
	builder.WriteString(fmt.Sprintf("Avg MaxPrice: %s\n", analysis.Fixed(s.AvgMaxPrice, 2)))
	builder.WriteString(fmt.Sprintf("Avg AvgPrice: %s\n", analysis.Fixed(s.AvgAvgPrice, 2)))
	builder.WriteString(fmt.Sprintf("Frames: %d, samples: %d, skipped: %d\n", s.FrameCount, s.SampleCount, s.SkippedCount))
	builder.WriteString(fmt.Sprintf("Thresholds: %s\n", note.Thresholds))
	if note.RunID != "" {
		builder.WriteString(fmt.Sprintf("Run: %s\n", note.RunID))
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = Fanout(nil)
)
