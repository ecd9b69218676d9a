package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// GradeEventRepository remembers processed grading submissions by key
type GradeEventRepository struct {
	q sqlx.ExtContext
}

// NewGradeEventRepository creates a new grade event repository
func NewGradeEventRepository(q sqlx.ExtContext) *GradeEventRepository {
	return &GradeEventRepository{q: q}
}

// Record stores the submission key. It returns false when the key was seen before.
func (r *GradeEventRepository) Record(ctx context.Context, userID int64, key string, cardID int64, grade int, now time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO grade_events (user_id, event_key, card_id, grade, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, event_key) DO NOTHING
	`), userID, key, cardID, grade, dbTime(now))
	if err != nil {
		return false, fmt.Errorf("failed to record grade event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}
