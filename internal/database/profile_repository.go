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

// ProfileRepository handles database operations for gamification profiles.
// The profile row doubles as the per-user lock for every progress event.
type ProfileRepository struct {
	q sqlx.ExtContext
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(q sqlx.ExtContext) *ProfileRepository {
	return &ProfileRepository{q: q}
}

const profileColumns = `user_id, xp_total, level, current_streak, longest_streak, hearts,
	timezone, reminder_enabled, reminder_hour, created_at, updated_at`

// Get returns the profile of a user
func (r *ProfileRepository) Get(ctx context.Context, userID int64) (*models.GamificationProfile, error) {
	var p models.GamificationProfile
	err := sqlx.GetContext(ctx, r.q, &p, r.q.Rebind("SELECT "+profileColumns+" FROM gamification_profiles WHERE user_id = ?"), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile for user %d: %w", userID, err)
	}
	return &p, nil
}

// Ensure creates a fresh profile for the user unless one exists
func (r *ProfileRepository) Ensure(ctx context.Context, userID int64, timezone string, now time.Time) error {
	if timezone == "" {
		timezone = "UTC"
	}
	now = dbTime(now)
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO gamification_profiles (
			user_id, xp_total, level, current_streak, longest_streak, hearts,
			timezone, reminder_enabled, reminder_hour, created_at, updated_at
		) VALUES (?, 0, 1, 0, 0, ?, ?, FALSE, 9, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`), userID, models.MaxHearts, timezone, now, now)
	if err != nil {
		return fmt.Errorf("failed to create profile for user %d: %w", userID, err)
	}
	return nil
}

// GetOrCreate returns the user's profile, creating it on first use
func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID int64, timezone string, now time.Time) (*models.GamificationProfile, error) {
	if err := r.Ensure(ctx, userID, timezone, now); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

// Lock makes sure the profile exists and takes its row lock for the rest of
// the transaction. On SQLite the single pooled connection already serializes
// writers, so the plain read is enough there.
func (r *ProfileRepository) Lock(ctx context.Context, userID int64, timezone string, now time.Time) (*models.GamificationProfile, error) {
	if err := r.Ensure(ctx, userID, timezone, now); err != nil {
		return nil, err
	}
	query := "SELECT " + profileColumns + " FROM gamification_profiles WHERE user_id = ?"
	if IsPostgres(r.q) {
		query += " FOR UPDATE"
	}

	var p models.GamificationProfile
	if err := sqlx.GetContext(ctx, r.q, &p, r.q.Rebind(query), userID); err != nil {
		return nil, fmt.Errorf("failed to lock profile for user %d: %w", userID, err)
	}
	return &p, nil
}

// AddXP atomically adds xp to the running total and returns the new total
func (r *ProfileRepository) AddXP(ctx context.Context, userID int64, xp int, now time.Time) (int, error) {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE gamification_profiles SET xp_total = xp_total + ?, updated_at = ?
		WHERE user_id = ?
	`), xp, dbTime(now), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to add xp: %w", err)
	}

	var total int
	err = sqlx.GetContext(ctx, r.q, &total, r.q.Rebind("SELECT xp_total FROM gamification_profiles WHERE user_id = ?"), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to read xp total: %w", err)
	}
	return total, nil
}

// RaiseLevel sets the level only if it is higher than the stored one
func (r *ProfileRepository) RaiseLevel(ctx context.Context, userID int64, level int, now time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE gamification_profiles SET level = ?, updated_at = ?
		WHERE user_id = ? AND level < ?
	`), level, dbTime(now), userID, level)
	if err != nil {
		return false, fmt.Errorf("failed to raise level: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// UpdateStreaks stores the current streak and keeps the longest streak monotonic
func (r *ProfileRepository) UpdateStreaks(ctx context.Context, userID int64, current, longest int, now time.Time) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE gamification_profiles SET
			current_streak = ?,
			longest_streak = CASE WHEN longest_streak > ? THEN longest_streak ELSE ? END,
			updated_at = ?
		WHERE user_id = ?
	`), current, longest, longest, dbTime(now), userID)
	if err != nil {
		return fmt.Errorf("failed to update streaks: %w", err)
	}
	return nil
}

// RestoreHeart gives back one heart without exceeding a full bar
func (r *ProfileRepository) RestoreHeart(ctx context.Context, userID int64, now time.Time) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE gamification_profiles SET hearts = hearts + 1, updated_at = ?
		WHERE user_id = ? AND hearts < ?
	`), dbTime(now), userID, models.MaxHearts)
	if err != nil {
		return fmt.Errorf("failed to restore heart: %w", err)
	}
	return nil
}

// SpendHeart takes one heart away. It reports false when the bar was already empty.
func (r *ProfileRepository) SpendHeart(ctx context.Context, userID int64, now time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE gamification_profiles SET hearts = hearts - 1, updated_at = ?
		WHERE user_id = ? AND hearts > 0
	`), dbTime(now), userID)
	if err != nil {
		return false, fmt.Errorf("failed to spend heart: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// UpdateReminder changes the reminder preference of a user
func (r *ProfileRepository) UpdateReminder(ctx context.Context, userID int64, enabled bool, hour int, now time.Time) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE gamification_profiles SET reminder_enabled = ?, reminder_hour = ?, updated_at = ?
		WHERE user_id = ?
	`), enabled, hour, dbTime(now), userID)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	return nil
}

// SetTimezone changes the IANA zone used to compute the user's calendar day
func (r *ProfileRepository) SetTimezone(ctx context.Context, userID int64, timezone string, now time.Time) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE gamification_profiles SET timezone = ?, updated_at = ?
		WHERE user_id = ?
	`), timezone, dbTime(now), userID)
	if err != nil {
		return fmt.Errorf("failed to set timezone: %w", err)
	}
	return nil
}

// ListReminderCandidates returns every profile with reminders switched on
func (r *ProfileRepository) ListReminderCandidates(ctx context.Context) ([]models.GamificationProfile, error) {
	var profiles []models.GamificationProfile
	err := sqlx.SelectContext(ctx, r.q, &profiles, r.q.Rebind(
		"SELECT "+profileColumns+" FROM gamification_profiles WHERE reminder_enabled = ? ORDER BY user_id"), true)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}
	return profiles, nil
}
