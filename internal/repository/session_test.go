package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
	"wisefido-gait/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SessionRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewSessionRepository(db, logger)

	return db, mock, repo
}

func testSummary(bpm *float64) *models.SessionSummary {
	started := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &models.SessionSummary{
		SessionID:   "6f1c2b8e-0d1f-4a55-9a3e-3c2e4a1d7b10",
		Exercise:    "swing",
		Sensitivity: 2,
		StartedAt:   started,
		EndedAt:     started.Add(20 * time.Second),
		Legs: [2]models.LegSummary{
			{Leg: "left", Role: "stepping", Samples: 3, Movements: 2, EventIndices: []int64{1, 2}},
			{Leg: "right", Role: "stationary", Samples: 3, Movements: 0},
		},
		BPM: bpm,
	}
}

func TestSaveSession_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	bpm := 96.0
	summary := testSummary(&bpm)

	mock.ExpectExec(`INSERT INTO gait_sessions`).
		WithArgs(
			summary.SessionID, "swing", 2, summary.StartedAt, summary.EndedAt,
			sqlmock.AnyArg(), "stepping", "stationary", 2, 0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveSession(context.Background(), summary, [2][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSession_AlreadyStored(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO gait_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveSession(context.Background(), testSummary(nil), [2][]float64{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSession_Error(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO gait_sessions`).
		WillReturnError(errors.New("connection reset"))

	err := repo.SaveSession(context.Background(), testSummary(nil), [2][]float64{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert gait session")
}

func TestGetSession_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	summary := testSummary(nil)
	rows := sqlmock.NewRows([]string{
		"session_id", "exercise", "sensitivity", "started_at", "ended_at", "bpm",
		"left_role", "right_role", "left_movements", "right_movements",
		"left_events", "right_events", "left_count", "right_count",
	}).AddRow(
		summary.SessionID, "swing", 2, summary.StartedAt, summary.EndedAt, 104.5,
		"stepping", "stationary", 2, 0,
		"{1,2}", "{}", 3, 3,
	)

	mock.ExpectQuery(`SELECT session_id, exercise`).
		WithArgs(summary.SessionID).
		WillReturnRows(rows)

	got, err := repo.GetSession(context.Background(), summary.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "swing", got.Exercise)
	assert.Equal(t, []int64{1, 2}, got.Legs[0].EventIndices)
	assert.Empty(t, got.Legs[1].EventIndices)
	assert.Equal(t, "left", got.Legs[0].Leg)
	assert.Equal(t, "right", got.Legs[1].Leg)
	assert.Equal(t, 3, got.Legs[1].Samples)
	require.NotNil(t, got.BPM)
	assert.Equal(t, 104.5, *got.BPM)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSession_NotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT session_id, exercise`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}))

	_, err := repo.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestListRecent(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT session_id FROM gait_sessions`).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}).AddRow("a").AddRow("b"))

	ids, err := repo.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS gait_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
