package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"wisefido-gait/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrSessionNotFound 会话记录不存在
var ErrSessionNotFound = errors.New("session not found")

// Schema gait_sessions 表结构
const Schema = `
CREATE TABLE IF NOT EXISTS gait_sessions (
	session_id      UUID PRIMARY KEY,
	exercise        TEXT NOT NULL,
	sensitivity     SMALLINT NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	ended_at        TIMESTAMPTZ NOT NULL,
	bpm             DOUBLE PRECISION,
	left_role       TEXT NOT NULL,
	right_role      TEXT NOT NULL,
	left_movements  INTEGER NOT NULL,
	right_movements INTEGER NOT NULL,
	left_events     BIGINT[] NOT NULL,
	right_events    BIGINT[] NOT NULL,
	left_samples    DOUBLE PRECISION[] NOT NULL,
	right_samples   DOUBLE PRECISION[] NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// SessionRepository 会话记录（离线回看）
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository 创建会话仓库
func NewSessionRepository(db *sql.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（已存在时无操作）
func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create gait_sessions table: %w", err)
	}
	return nil
}

// SaveSession 保存会话摘要和两条腿的原始样本
func (r *SessionRepository) SaveSession(ctx context.Context, summary *models.SessionSummary, samples [2][]float64) error {
	query := `
		INSERT INTO gait_sessions (
			session_id, exercise, sensitivity, started_at, ended_at, bpm,
			left_role, right_role, left_movements, right_movements,
			left_events, right_events, left_samples, right_samples
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session_id) DO NOTHING
	`

	var bpm sql.NullFloat64
	if summary.BPM != nil {
		bpm = sql.NullFloat64{Float64: *summary.BPM, Valid: true}
	}

	left, right := summary.Legs[0], summary.Legs[1]
	result, err := r.db.ExecContext(ctx, query,
		summary.SessionID,
		summary.Exercise,
		summary.Sensitivity,
		summary.StartedAt,
		summary.EndedAt,
		bpm,
		left.Role,
		right.Role,
		left.Movements,
		right.Movements,
		pq.Array(nonNilInt64(left.EventIndices)),
		pq.Array(nonNilInt64(right.EventIndices)),
		pq.Array(nonNilFloat64(samples[0])),
		pq.Array(nonNilFloat64(samples[1])),
	)
	if err != nil {
		return fmt.Errorf("failed to insert gait session: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		r.logger.Warn("Gait session already stored", zap.String("session_id", summary.SessionID))
		return nil
	}

	r.logger.Info("Gait session stored",
		zap.String("session_id", summary.SessionID),
		zap.Int("left_samples", len(samples[0])),
		zap.Int("right_samples", len(samples[1])),
	)
	return nil
}

// GetSession 读取会话摘要（不含原始样本）
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	query := `
		SELECT session_id, exercise, sensitivity, started_at, ended_at, bpm,
		       left_role, right_role, left_movements, right_movements,
		       left_events, right_events,
		       COALESCE(array_length(left_samples, 1), 0),
		       COALESCE(array_length(right_samples, 1), 0)
		FROM gait_sessions
		WHERE session_id = $1
	`

	var (
		s           models.SessionSummary
		bpm         sql.NullFloat64
		left, right models.LegSummary
	)
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&s.SessionID,
		&s.Exercise,
		&s.Sensitivity,
		&s.StartedAt,
		&s.EndedAt,
		&bpm,
		&left.Role,
		&right.Role,
		&left.Movements,
		&right.Movements,
		pq.Array(&left.EventIndices),
		pq.Array(&right.EventIndices),
		&left.Samples,
		&right.Samples,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to query gait session: %w", err)
	}

	left.Leg = models.LegLeft.String()
	right.Leg = models.LegRight.String()
	s.Legs = [2]models.LegSummary{left, right}
	if bpm.Valid {
		v := bpm.Float64
		s.BPM = &v
	}
	return &s, nil
}

// ListRecent 最近的会话 ID（按开始时间倒序）
func (r *SessionRepository) ListRecent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id FROM gait_sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list gait sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan gait session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nonNilInt64(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}

func nonNilFloat64(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
