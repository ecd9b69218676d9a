package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
)

// WeakAreaRepository stores the per-user weak-area snapshot
type WeakAreaRepository struct {
	q sqlx.ExtContext
}

// NewWeakAreaRepository creates a new weak area repository
func NewWeakAreaRepository(q sqlx.ExtContext) *WeakAreaRepository {
	return &WeakAreaRepository{q: q}
}

// Replace swaps the user's snapshot for areas. Run it inside a transaction so
// readers never see a half-written set.
func (r *WeakAreaRepository) Replace(ctx context.Context, userID int64, areas []models.WeakArea, now time.Time) error {
	if _, err := r.q.ExecContext(ctx, r.q.Rebind("DELETE FROM weak_areas WHERE user_id = ?"), userID); err != nil {
		return fmt.Errorf("failed to clear weak areas: %w", err)
	}

	now = dbTime(now)
	for _, a := range areas {
		_, err := r.q.ExecContext(ctx, r.q.Rebind(`
			INSERT INTO weak_areas (user_id, category, weak_count, urgency, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`), userID, a.Category, a.Count, a.Urgency, now)
		if err != nil {
			return fmt.Errorf("failed to insert weak area %s: %w", a.Category, err)
		}
	}
	return nil
}

// ListByUser returns the snapshot, most urgent first
func (r *WeakAreaRepository) ListByUser(ctx context.Context, userID int64) ([]models.WeakArea, error) {
	var areas []models.WeakArea
	err := sqlx.SelectContext(ctx, r.q, &areas, r.q.Rebind(`
		SELECT user_id, category, weak_count, urgency, updated_at FROM weak_areas
		WHERE user_id = ? ORDER BY weak_count DESC, category ASC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list weak areas: %w", err)
	}
	return areas, nil
}
