package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
)

// StatDelta is an additive change to one day's counters
type StatDelta struct {
	Minutes  int
	Reviews  int
	NewItems int
	Lessons  int
	XP       int
}

// IsZero reports whether applying the delta would change nothing
func (d StatDelta) IsZero() bool {
	return d == StatDelta{}
}

// DailyStatRepository handles database operations for per-day activity counters
type DailyStatRepository struct {
	q sqlx.ExtContext
}

// NewDailyStatRepository creates a new daily stat repository
func NewDailyStatRepository(q sqlx.ExtContext) *DailyStatRepository {
	return &DailyStatRepository{q: q}
}

// Get returns the user's counters for day
func (r *DailyStatRepository) Get(ctx context.Context, userID int64, day string) (*models.DailyStat, error) {
	var stat models.DailyStat
	err := sqlx.GetContext(ctx, r.q, &stat, r.q.Rebind(`
		SELECT id, user_id, day, minutes, reviews, new_items, lessons, xp_earned
		FROM daily_stats WHERE user_id = ? AND day = ?
	`), userID, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stat: %w", err)
	}
	return &stat, nil
}

// Ensure creates an empty row for the day unless one exists
func (r *DailyStatRepository) Ensure(ctx context.Context, userID int64, day string) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO daily_stats (user_id, day) VALUES (?, ?)
		ON CONFLICT (user_id, day) DO NOTHING
	`), userID, day)
	if err != nil {
		return fmt.Errorf("failed to create daily stat: %w", err)
	}
	return nil
}

// GetOrCreate returns the day's counters, creating a zero row on first use
func (r *DailyStatRepository) GetOrCreate(ctx context.Context, userID int64, day string) (*models.DailyStat, error) {
	if err := r.Ensure(ctx, userID, day); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID, day)
}

// Increment adds delta to the day's counters in a single statement
func (r *DailyStatRepository) Increment(ctx context.Context, userID int64, day string, delta StatDelta) error {
	if err := r.Ensure(ctx, userID, day); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE daily_stats SET
			minutes = minutes + ?,
			reviews = reviews + ?,
			new_items = new_items + ?,
			lessons = lessons + ?,
			xp_earned = xp_earned + ?
		WHERE user_id = ? AND day = ?
	`), delta.Minutes, delta.Reviews, delta.NewItems, delta.Lessons, delta.XP, userID, day)
	if err != nil {
		return fmt.Errorf("failed to increment daily stat: %w", err)
	}
	return nil
}

// ActiveDays returns, in ascending order, the days on which the goal was met.
// Only qualifying rows leave the database.
func (r *DailyStatRepository) ActiveDays(ctx context.Context, userID int64, goal models.DailyGoal) ([]string, error) {
	var days []string
	err := sqlx.SelectContext(ctx, r.q, &days, r.q.Rebind(`
		SELECT day FROM daily_stats
		WHERE user_id = ?
		  AND (reviews >= ? OR lessons >= ? OR new_items >= ? OR minutes >= ?)
		ORDER BY day ASC
	`), userID, goal.Reviews, goal.Lessons, goal.NewItems, goal.Minutes)
	if err != nil {
		return nil, fmt.Errorf("failed to get active days: %w", err)
	}
	return days, nil
}

// Totals returns lifetime sums of the new item and lesson counters
func (r *DailyStatRepository) Totals(ctx context.Context, userID int64) (newItems, lessons int, err error) {
	var row struct {
		NewItems int `db:"new_items"`
		Lessons  int `db:"lessons"`
	}
	err = sqlx.GetContext(ctx, r.q, &row, r.q.Rebind(`
		SELECT COALESCE(SUM(new_items), 0) AS new_items, COALESCE(SUM(lessons), 0) AS lessons
		FROM daily_stats WHERE user_id = ?
	`), userID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum daily stats: %w", err)
	}
	return row.NewItems, row.Lessons, nil
}

// ListRecent returns the user's last n days that have a row, newest first
func (r *DailyStatRepository) ListRecent(ctx context.Context, userID int64, n int) ([]models.DailyStat, error) {
	var stats []models.DailyStat
	err := sqlx.SelectContext(ctx, r.q, &stats, r.q.Rebind(`
		SELECT id, user_id, day, minutes, reviews, new_items, lessons, xp_earned
		FROM daily_stats WHERE user_id = ?
		ORDER BY day DESC LIMIT ?
	`), userID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}
	return stats, nil
}
