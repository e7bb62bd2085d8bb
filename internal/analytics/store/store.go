// Package store persists periodic snapshots of the aggregated search
// analytics to PostgreSQL, so dashboards keep their history across restarts
// of the aggregation service.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/searchlab/prodsearch/internal/analytics"
	"github.com/searchlab/prodsearch/pkg/postgres"
	"github.com/searchlab/prodsearch/pkg/resilience"
)

// Snapshot is one persisted rollup with the time it was captured.
type Snapshot struct {
	CapturedAt time.Time                 `json:"captured_at"`
	Stats      analytics.AggregatedStats `json:"stats"`
}

// Store writes snapshots to the search_stats_snapshots table. The headline
// counters are real columns so history can be queried without unpacking the
// JSONB payload; the full rollup rides along as JSONB.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger

	lastQueries int64
	lastClicks  int64
}

// NewStore creates a snapshot store over an open connection pool.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// EnsureSchema creates the snapshot table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS search_stats_snapshots (
		    id            BIGSERIAL PRIMARY KEY,
		    total_queries BIGINT NOT NULL,
		    total_clicks  BIGINT NOT NULL,
		    stats         JSONB NOT NULL,
		    captured_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("creating snapshot table: %w", err)
	}
	return nil
}

// SaveSnapshot persists one rollup.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO search_stats_snapshots (total_queries, total_clicks, stats, captured_at)
		 VALUES ($1, $2, $3, $4)`,
		stats.TotalQueries, stats.TotalClicks, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.logger.Info("analytics snapshot saved",
		"total_queries", stats.TotalQueries,
		"total_clicks", stats.TotalClicks,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot. Returns nil, nil when the
// table is empty.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		payload    []byte
		capturedAt time.Time
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT stats, captured_at FROM search_stats_snapshots
		 ORDER BY captured_at DESC, id DESC LIMIT 1`,
	).Scan(&payload, &capturedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	snap := Snapshot{CapturedAt: capturedAt}
	if err := json.Unmarshal(payload, &snap.Stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns the last N snapshots, newest first. Rows whose JSONB
// payload no longer decodes are skipped rather than failing the whole list.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT stats, captured_at FROM search_stats_snapshots
		 ORDER BY captured_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var (
			payload    []byte
			capturedAt time.Time
		)
		if err := rows.Scan(&payload, &capturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		snap := Snapshot{CapturedAt: capturedAt}
		if err := json.Unmarshal(payload, &snap.Stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// saveIfChanged skips the write when the headline counters have not moved
// since the last successful save, so a quiet service does not grow the table.
func (s *Store) saveIfChanged(ctx context.Context, stats analytics.AggregatedStats) error {
	if stats.TotalQueries == s.lastQueries && stats.TotalClicks == s.lastClicks {
		s.logger.Debug("snapshot unchanged, skipping save")
		return nil
	}
	if err := s.SaveSnapshot(ctx, stats); err != nil {
		return err
	}
	s.lastQueries = stats.TotalQueries
	s.lastClicks = stats.TotalClicks
	return nil
}

// StartPeriodicSave launches a goroutine that snapshots the aggregator on
// the given interval, and once more on shutdown.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := agg.Stats()
				err := resilience.Retry(ctx, "snapshot-save", resilience.RetryConfig{MaxAttempts: 3}, func() error {
					return resilience.WithTimeout(ctx, 10*time.Second, "snapshot-save", func(ctx context.Context) error {
						return s.saveIfChanged(ctx, stats)
					})
				})
				if err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				// Final snapshot on shutdown.
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.saveIfChanged(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
