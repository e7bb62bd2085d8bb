package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/prodsearch/internal/analytics"
	"github.com/searchlab/prodsearch/pkg/postgres"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(&postgres.Client{DB: db}), mock
}

func TestSaveSnapshotWritesHeadlineColumns(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec("INSERT INTO search_stats_snapshots").
		WithArgs(int64(3), int64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.SaveSnapshot(context.Background(), analytics.AggregatedStats{
		TotalQueries: 3,
		TotalClicks:  1,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestSnapshotEmptyTable(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery("SELECT stats, captured_at FROM search_stats_snapshots").
		WillReturnError(sql.ErrNoRows)

	snap, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestLatestSnapshotDecodesPayload(t *testing.T) {
	s, mock := newStoreWithMock(t)

	capturedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(analytics.AggregatedStats{TotalQueries: 7, TotalClicks: 2})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT stats, captured_at FROM search_stats_snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"stats", "captured_at"}).
			AddRow(payload, capturedAt))

	snap, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, capturedAt, snap.CapturedAt)
	assert.Equal(t, int64(7), snap.Stats.TotalQueries)
	assert.Equal(t, int64(2), snap.Stats.TotalClicks)
}

func TestListSnapshotsSkipsCorruptRows(t *testing.T) {
	s, mock := newStoreWithMock(t)

	good, err := json.Marshal(analytics.AggregatedStats{TotalQueries: 5})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT stats, captured_at FROM search_stats_snapshots").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"stats", "captured_at"}).
			AddRow(good, time.Now().UTC()).
			AddRow([]byte("not json"), time.Now().UTC()))

	snapshots, err := s.ListSnapshots(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, int64(5), snapshots[0].Stats.TotalQueries)
}

// A quiet service must not grow the table: a second save with the same
// headline counters is skipped entirely.
func TestSaveIfChangedSkipsUnchangedCounters(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec("INSERT INTO search_stats_snapshots").
		WithArgs(int64(4), int64(2), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	stats := analytics.AggregatedStats{TotalQueries: 4, TotalClicks: 2}
	require.NoError(t, s.saveIfChanged(context.Background(), stats))
	require.NoError(t, s.saveIfChanged(context.Background(), stats))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaCreatesTable(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS search_stats_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
