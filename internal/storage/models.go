package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunRecord is the audit row of one finished monitoring run.
type RunRecord struct {
	ID           uuid.UUID
	Symbol       string
	StartedAt    time.Time
	EndedAt      time.Time
	Interval     time.Duration
	SampleCount  int
	SkippedCount int
	FrameCount   int
	Outcome      string
	Notified     bool
	Thresholds   string
	Summary      *SummaryRecord
	Error        *string
	CreatedAt    time.Time
}

// SummaryRecord holds the aggregate figures of a run that produced frames.
type SummaryRecord struct {
	AvgMinPrice      decimal.Decimal
	AvgMaxPrice      decimal.Decimal
	AvgAvgPrice      decimal.Decimal
	AvgPriceDiff     decimal.Decimal
	AvgVolatilityPct decimal.Decimal
	OpeningPrice     decimal.Decimal
	ClosingPrice     decimal.Decimal
	PriceChangePct   decimal.Decimal
	ChangeSign       string
}

// FrameRecord is one persisted frame of a run.
type FrameRecord struct {
	RunID uuid.UUID
	Index int64
	Start time.Time
	End   time.Time
	Min   decimal.Decimal
	Max   decimal.Decimal
	Avg   decimal.Decimal
	Count int
}
