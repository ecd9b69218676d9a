package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
)

// ItemStrengthRepository handles database operations for per-word strength
type ItemStrengthRepository struct {
	q sqlx.ExtContext
}

// NewItemStrengthRepository creates a new item strength repository
func NewItemStrengthRepository(q sqlx.ExtContext) *ItemStrengthRepository {
	return &ItemStrengthRepository{q: q}
}

// Get returns the strength record of a word for a user
func (r *ItemStrengthRepository) Get(ctx context.Context, userID, wordID int64) (*models.ItemStrength, error) {
	var s models.ItemStrength
	err := sqlx.GetContext(ctx, r.q, &s, r.q.Rebind(`
		SELECT user_id, word_id, category, strength, last_seen, created_at, updated_at
		FROM item_strengths WHERE user_id = ? AND word_id = ?
	`), userID, wordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item strength: %w", err)
	}
	return &s, nil
}

// Ensure creates a zero-strength record unless one exists. The category is
// copied only at creation time.
func (r *ItemStrengthRepository) Ensure(ctx context.Context, userID, wordID int64, category string, now time.Time) (bool, error) {
	if category == "" {
		category = "General"
	}
	now = dbTime(now)
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO item_strengths (user_id, word_id, category, strength, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT (user_id, word_id) DO NOTHING
	`), userID, wordID, category, now, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to create item strength: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// Adjust moves the strength by delta within [0, 100] and returns the values
// before and after the change.
func (r *ItemStrengthRepository) Adjust(ctx context.Context, userID, wordID int64, delta int, now time.Time) (before, after int, err error) {
	err = sqlx.GetContext(ctx, r.q, &before, r.q.Rebind(
		"SELECT strength FROM item_strengths WHERE user_id = ? AND word_id = ?"), userID, wordID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read item strength: %w", err)
	}

	after = before + delta
	if after < 0 {
		after = 0
	}
	if after > 100 {
		after = 100
	}

	now = dbTime(now)
	_, err = r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE item_strengths SET strength = ?, last_seen = ?, updated_at = ?
		WHERE user_id = ? AND word_id = ?
	`), after, now, now, userID, wordID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to update item strength: %w", err)
	}
	return before, after, nil
}

// CategoryCount is the number of weak words in one category
type CategoryCount struct {
	Category string `db:"category"`
	Count    int    `db:"weak_count"`
}

// WeakCountsByCategory counts the user's words below threshold per category
func (r *ItemStrengthRepository) WeakCountsByCategory(ctx context.Context, userID int64, threshold int) ([]CategoryCount, error) {
	var counts []CategoryCount
	err := sqlx.SelectContext(ctx, r.q, &counts, r.q.Rebind(`
		SELECT category, COUNT(*) AS weak_count
		FROM item_strengths
		WHERE user_id = ? AND strength < ?
		GROUP BY category
		ORDER BY weak_count DESC, category ASC
	`), userID, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to count weak items: %w", err)
	}
	return counts, nil
}
