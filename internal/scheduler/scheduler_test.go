package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunStopsAfterDuration(t *testing.T) {
	s := New(Options{Cadence: 10 * time.Millisecond, Duration: 55 * time.Millisecond}, zerolog.Nop())

	var ticks atomic.Int32
	start := time.Now()
	if err := s.Run(context.Background(), func(ctx context.Context, fired time.Time) {
		ticks.Add(1)
	}); err != nil {
		t.Fatalf("window should close cleanly: %v", err)
	}

	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Fatalf("returned before the window closed: %s", elapsed)
	}
	if n := ticks.Load(); n < 1 || n > 5 {
		t.Fatalf("expected between 1 and 5 ticks, got %d", n)
	}

	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	if ticks.Load() != after {
		t.Fatal("no tick may start after the window closed")
	}
}

func TestRunDrainsInflightTicks(t *testing.T) {
	s := New(Options{Cadence: 5 * time.Millisecond, Duration: 22 * time.Millisecond}, zerolog.Nop())

	var started, finished atomic.Int32
	err := s.Run(context.Background(), func(ctx context.Context, fired time.Time) {
		started.Add(1)
		time.Sleep(40 * time.Millisecond)
		finished.Add(1)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.Load() == 0 {
		t.Fatal("expected overlapping ticks to start")
	}
	if started.Load() != finished.Load() {
		t.Fatalf("in-flight ticks must finish before Run returns: started=%d finished=%d", started.Load(), finished.Load())
	}
}

func TestRunCancelled(t *testing.T) {
	s := New(Options{Cadence: 5 * time.Millisecond, Duration: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int32
	err := s.Run(ctx, func(ctx context.Context, fired time.Time) {
		if ticks.Add(1) == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunDurationShorterThanCadence(t *testing.T) {
	s := New(Options{Cadence: 50 * time.Millisecond, Duration: 10 * time.Millisecond}, zerolog.Nop())

	var ticks atomic.Int32
	if err := s.Run(context.Background(), func(ctx context.Context, fired time.Time) {
		ticks.Add(1)
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticks.Load() != 0 {
		t.Fatalf("no tick should fire, got %d", ticks.Load())
	}
}
