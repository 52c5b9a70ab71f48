package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "sqlmock"), zap.NewNop()), mock
}

func runColumns() []string {
	return []string{
		"id", "session_id", "topic", "status", "report_path",
		"branch_count", "succeeded_count", "error_message",
		"started_at", "completed_at",
	}
}

func TestRecordRun(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectExec("INSERT INTO research_runs").
		WithArgs("run-1", "2026-03-14_09-26-53-ab12cd34", "quantum error correction",
			StatusRunning, "", 3, 0, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordRun(context.Background(), &Run{
		ID:          "run-1",
		SessionID:   "2026-03-14_09-26-53-ab12cd34",
		Topic:       "quantum error correction",
		BranchCount: 3,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRunRequiresIDs(t *testing.T) {
	store, _ := mockStore(t)
	err := store.RecordRun(context.Background(), &Run{Topic: "x"})
	assert.Error(t, err)
}

func TestMarkCompleted(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectExec("UPDATE research_runs").
		WithArgs(StatusCompleted, "/sessions/s1/final_report.md", 2, sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.MarkCompleted(context.Background(), "run-1", "/sessions/s1/final_report.md", 2)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedUnknownRun(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectExec("UPDATE research_runs").
		WithArgs(StatusFailed, "expansion timed out", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkFailed(context.Background(), "missing", "expansion timed out")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestGetRun(t *testing.T) {
	store, mock := mockStore(t)
	started := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	mock.ExpectQuery("SELECT \\* FROM research_runs WHERE id = ?").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runColumns()).
			AddRow("run-1", "s1", "quantum error correction", StatusCompleted,
				"/sessions/s1/final_report.md", 3, 3, "", started, started.Add(time.Minute)))

	run, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "quantum error correction", run.Topic)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 3, run.SucceededCount)
	require.NotNil(t, run.CompletedAt)
}

func TestGetRunNotFound(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectQuery("SELECT \\* FROM research_runs WHERE id = ?").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(runColumns()))

	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	store, mock := mockStore(t)
	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT \\* FROM research_runs ORDER BY started_at DESC LIMIT ?").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(runColumns()).
			AddRow("run-2", "s2", "b", StatusRunning, "", 3, 0, "", started.Add(time.Hour), nil).
			AddRow("run-1", "s1", "a", StatusCompleted, "r.md", 3, 2, "", started, started.Add(time.Minute)))

	runs, err := store.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", zap.NewNop())
	assert.Error(t, err)
}
