package analysis

import (
	"sync"
	"time"
)

// Sample is a single observed price.
type Sample struct {
	Timestamp time.Time
	Price     float64
}

// Buffer owns the samples of one monitoring run. Appends are serialised and
// stamped under the lock, so samples stay in completion-time order even when
// polls overlap.
type Buffer struct {
	mu      sync.Mutex
	now     func() time.Time
	samples []Sample
	frozen  bool
}

// NewBuffer creates an empty buffer stamping samples with now. A nil clock
// falls back to time.Now.
func NewBuffer(now func() time.Time) *Buffer {
	if now == nil {
		now = time.Now
	}
	return &Buffer{now: now}
}

// Append records price at the current clock reading. It reports false once
// the buffer has been frozen.
func (b *Buffer) Append(price float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return false
	}
	b.samples = append(b.samples, Sample{Timestamp: b.now(), Price: price})
	return true
}

// Len returns the number of samples recorded so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Freeze stops further appends and returns a copy of the recorded samples.
func (b *Buffer) Freeze() []Sample {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frozen = true
	out := make([]Sample, len(b.samples))
	copy(out, b.samples)
	return out
}
