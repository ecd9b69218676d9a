package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
)

// BadgeRepository handles database operations for earned badges.
// Badges are only ever inserted.
type BadgeRepository struct {
	q sqlx.ExtContext
}

// NewBadgeRepository creates a new badge repository
func NewBadgeRepository(q sqlx.ExtContext) *BadgeRepository {
	return &BadgeRepository{q: q}
}

// Award grants a badge and reports whether it is new
func (r *BadgeRepository) Award(ctx context.Context, userID int64, badgeID string, now time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO user_badges (user_id, badge_id, earned_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`), userID, badgeID, dbTime(now))
	if err != nil {
		return false, fmt.Errorf("failed to award badge %s: %w", badgeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ListByUser returns the user's badges in the order they were earned
func (r *BadgeRepository) ListByUser(ctx context.Context, userID int64) ([]models.Badge, error) {
	var badges []models.Badge
	err := sqlx.SelectContext(ctx, r.q, &badges, r.q.Rebind(`
		SELECT user_id, badge_id, earned_at FROM user_badges
		WHERE user_id = ? ORDER BY earned_at ASC, badge_id ASC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	return badges, nil
}

// IDs returns the set of badge ids the user already holds
func (r *BadgeRepository) IDs(ctx context.Context, userID int64) (map[string]bool, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, r.q, &ids, r.q.Rebind("SELECT badge_id FROM user_badges WHERE user_id = ?"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list badge ids: %w", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
