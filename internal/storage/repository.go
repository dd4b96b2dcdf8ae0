package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrRunNotFound indicates no run exists with the requested id.
	ErrRunNotFound = errors.New("storage: run not found")
)

const (
	insertRunSQL = `INSERT INTO monitor_runs (
        id,
        symbol,
        started_at,
        ended_at,
        interval_ms,
        sample_count,
        skipped_count,
        frame_count,
        outcome,
        notified,
        thresholds,
        avg_min_price,
        avg_max_price,
        avg_avg_price,
        avg_price_diff,
        avg_volatility_pct,
        opening_price,
        closing_price,
        price_change_pct,
        change_sign,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
    );`

	insertFrameSQL = `INSERT INTO run_frames (
        run_id,
        frame_index,
        frame_start,
        frame_end,
        min_price,
        max_price,
        avg_price,
        sample_count
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	selectRunColumns = `SELECT
        id,
        symbol,
        started_at,
        ended_at,
        interval_ms,
        sample_count,
        skipped_count,
        frame_count,
        outcome,
        notified,
        thresholds,
        avg_min_price::text,
        avg_max_price::text,
        avg_avg_price::text,
        avg_price_diff::text,
        avg_volatility_pct::text,
        opening_price::text,
        closing_price::text,
        price_change_pct::text,
        change_sign,
        error,
        created_at
    FROM monitor_runs`

	listRecentRunsSQL = selectRunColumns + `
    ORDER BY started_at DESC
    LIMIT $1;`

	getRunSQL = selectRunColumns + `
    WHERE id = $1;`

	listFramesSQL = `SELECT
        run_id,
        frame_index,
        frame_start,
        frame_end,
        min_price::text,
        max_price::text,
        avg_price::text,
        sample_count
    FROM run_frames
    WHERE run_id = $1
    ORDER BY frame_index;`

	deleteRunsBeforeSQL = `DELETE FROM monitor_runs WHERE started_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// RunStore defines persistence of finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord, frames []FrameRecord) error
	GetRun(ctx context.Context, id uuid.UUID) (RunRecord, error)
	ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	ListFrames(ctx context.Context, runID uuid.UUID) ([]FrameRecord, error)
	DeleteRunsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to runs and frames.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// a failed unlock is released with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// SaveRun stores a run and its frames in one transaction.
func (s *Store) SaveRun(ctx context.Context, run RunRecord, frames []FrameRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertRunSQL, runArgs(run)...); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if len(frames) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, f := range frames {
			batch.Queue(insertFrameSQL,
				run.ID,
				f.Index,
				f.Start,
				f.End,
				f.Min.String(),
				f.Max.String(),
				f.Avg.String(),
				f.Count,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert frames: %w", err)
		}
		return nil
	})
}

func runArgs(run RunRecord) []any {
	args := []any{
		run.ID,
		run.Symbol,
		run.StartedAt,
		run.EndedAt,
		run.Interval.Milliseconds(),
		run.SampleCount,
		run.SkippedCount,
		run.FrameCount,
		run.Outcome,
		run.Notified,
		run.Thresholds,
	}

	if s := run.Summary; s != nil {
		args = append(args,
			s.AvgMinPrice.String(),
			s.AvgMaxPrice.String(),
			s.AvgAvgPrice.String(),
			s.AvgPriceDiff.String(),
			s.AvgVolatilityPct.String(),
			s.OpeningPrice.String(),
			s.ClosingPrice.String(),
			s.PriceChangePct.String(),
			s.ChangeSign,
		)
	} else {
		args = append(args, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	}

	var errMsg any
	if run.Error != nil {
		errMsg = *run.Error
	}
	return append(args, errMsg)
}

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return RunRecord{}, err
	}

	rows, err := pool.Query(ctx, getRunSQL, id)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return RunRecord{}, rows.Err()
		}
		return RunRecord{}, ErrRunNotFound
	}
	return scanRun(rows)
}

// ListRecentRuns lists the most recent runs ordered by descending start.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// ListFrames lists the frames of a run in time order.
func (s *Store) ListFrames(ctx context.Context, runID uuid.UUID) ([]FrameRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listFramesSQL, runID)
	if queryErr != nil {
		return nil, fmt.Errorf("list frames: %w", queryErr)
	}
	defer rows.Close()

	frames := make([]FrameRecord, 0)
	for rows.Next() {
		var f FrameRecord
		var minStr, maxStr, avgStr string
		if err := rows.Scan(&f.RunID, &f.Index, &f.Start, &f.End, &minStr, &maxStr, &avgStr, &f.Count); err != nil {
			return nil, err
		}
		if f.Min, err = decimal.NewFromString(minStr); err != nil {
			return nil, fmt.Errorf("parse min price: %w", err)
		}
		if f.Max, err = decimal.NewFromString(maxStr); err != nil {
			return nil, fmt.Errorf("parse max price: %w", err)
		}
		if f.Avg, err = decimal.NewFromString(avgStr); err != nil {
			return nil, fmt.Errorf("parse avg price: %w", err)
		}
		frames = append(frames, f)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return frames, nil
}

// DeleteRunsBefore prunes old runs; frames cascade.
func (s *Store) DeleteRunsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteRunsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete runs before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func scanRun(rows pgx.Rows) (RunRecord, error) {
	var (
		run        RunRecord
		intervalMS int64
		figures    [8]sql.NullString
		sign       sql.NullString
		errMsg     sql.NullString
	)

	if err := rows.Scan(
		&run.ID,
		&run.Symbol,
		&run.StartedAt,
		&run.EndedAt,
		&intervalMS,
		&run.SampleCount,
		&run.SkippedCount,
		&run.FrameCount,
		&run.Outcome,
		&run.Notified,
		&run.Thresholds,
		&figures[0],
		&figures[1],
		&figures[2],
		&figures[3],
		&figures[4],
		&figures[5],
		&figures[6],
		&figures[7],
		&sign,
		&errMsg,
		&run.CreatedAt,
	); err != nil {
		return RunRecord{}, err
	}
	run.Interval = time.Duration(intervalMS) * time.Millisecond

	if figures[0].Valid {
		parsed := make([]decimal.Decimal, len(figures))
		for i, f := range figures {
			d, err := decimal.NewFromString(f.String)
			if err != nil {
				return RunRecord{}, fmt.Errorf("parse summary column %d: %w", i, err)
			}
			parsed[i] = d
		}
		run.Summary = &SummaryRecord{
			AvgMinPrice:      parsed[0],
			AvgMaxPrice:      parsed[1],
			AvgAvgPrice:      parsed[2],
			AvgPriceDiff:     parsed[3],
			AvgVolatilityPct: parsed[4],
			OpeningPrice:     parsed[5],
			ClosingPrice:     parsed[6],
			PriceChangePct:   parsed[7],
			ChangeSign:       sign.String,
		}
	}
	if errMsg.Valid {
		msg := errMsg.String
		run.Error = &msg
	}

	return run, nil
}

var (
	_ RunStore       = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
