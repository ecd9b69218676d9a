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

// MissionRepository handles database operations for mission templates and
// the per-day instances assigned to users
type MissionRepository struct {
	q sqlx.ExtContext
}

// NewMissionRepository creates a new mission repository
func NewMissionRepository(q sqlx.ExtContext) *MissionRepository {
	return &MissionRepository{q: q}
}

// ListActiveTemplates returns every template that can be assigned
func (r *MissionRepository) ListActiveTemplates(ctx context.Context) ([]models.MissionTemplate, error) {
	var templates []models.MissionTemplate
	err := sqlx.SelectContext(ctx, r.q, &templates, r.q.Rebind(`
		SELECT id, title, mission_type, required_count, xp_reward, is_active
		FROM mission_templates WHERE is_active = ? ORDER BY id
	`), true)
	if err != nil {
		return nil, fmt.Errorf("failed to list mission templates: %w", err)
	}
	return templates, nil
}

// GetTemplateByTitle returns a template by its unique title
func (r *MissionRepository) GetTemplateByTitle(ctx context.Context, title string) (*models.MissionTemplate, error) {
	var t models.MissionTemplate
	err := sqlx.GetContext(ctx, r.q, &t, r.q.Rebind(`
		SELECT id, title, mission_type, required_count, xp_reward, is_active
		FROM mission_templates WHERE title = ?
	`), title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission template: %w", err)
	}
	return &t, nil
}

// UpsertTemplate creates a template or updates the one with the same title.
// It reports whether a new row was created.
func (r *MissionRepository) UpsertTemplate(ctx context.Context, t *models.MissionTemplate) (bool, error) {
	existing, err := r.GetTemplateByTitle(ctx, t.Title)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if existing != nil {
		_, err := r.q.ExecContext(ctx, r.q.Rebind(`
			UPDATE mission_templates SET mission_type = ?, required_count = ?, xp_reward = ?, is_active = ?
			WHERE id = ?
		`), t.MissionType, t.RequiredCount, t.XPReward, t.IsActive, existing.ID)
		if err != nil {
			return false, fmt.Errorf("failed to update mission template: %w", err)
		}
		t.ID = existing.ID
		return false, nil
	}

	_, err = r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO mission_templates (title, mission_type, required_count, xp_reward, is_active)
		VALUES (?, ?, ?, ?, ?)
	`), t.Title, t.MissionType, t.RequiredCount, t.XPReward, t.IsActive)
	if err != nil {
		return false, fmt.Errorf("failed to create mission template: %w", err)
	}

	created, err := r.GetTemplateByTitle(ctx, t.Title)
	if err != nil {
		return false, err
	}
	t.ID = created.ID
	return true, nil
}

const progressColumns = `mp.id, mp.user_id, mp.mission_id, mp.day, mp.current_progress, mp.is_completed,
	mt.title, mt.mission_type, mt.required_count, mt.xp_reward`

// ListForDay returns the user's mission instances for day with template details
func (r *MissionRepository) ListForDay(ctx context.Context, userID int64, day string) ([]models.MissionProgress, error) {
	var missions []models.MissionProgress
	err := sqlx.SelectContext(ctx, r.q, &missions, r.q.Rebind(`
		SELECT `+progressColumns+`
		FROM mission_progress mp
		JOIN mission_templates mt ON mt.id = mp.mission_id
		WHERE mp.user_id = ? AND mp.day = ?
		ORDER BY mp.id
	`), userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	return missions, nil
}

// ListOpenForDay returns the instances for day that are not completed yet
func (r *MissionRepository) ListOpenForDay(ctx context.Context, userID int64, day string) ([]models.MissionProgress, error) {
	var missions []models.MissionProgress
	err := sqlx.SelectContext(ctx, r.q, &missions, r.q.Rebind(`
		SELECT `+progressColumns+`
		FROM mission_progress mp
		JOIN mission_templates mt ON mt.id = mp.mission_id
		WHERE mp.user_id = ? AND mp.day = ? AND mp.is_completed = ?
		ORDER BY mp.id
	`), userID, day, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list open missions: %w", err)
	}
	return missions, nil
}

// Assign creates an instance of a template for the user's day. Assigning the
// same template twice on one day is a no-op.
func (r *MissionRepository) Assign(ctx context.Context, userID, missionID int64, day string, now time.Time) (bool, error) {
	now = dbTime(now)
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO mission_progress (user_id, mission_id, day, current_progress, is_completed, created_at, updated_at)
		VALUES (?, ?, ?, 0, FALSE, ?, ?)
		ON CONFLICT (user_id, mission_id, day) DO NOTHING
	`), userID, missionID, day, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to assign mission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// SetProgress stores progress on an open instance
func (r *MissionRepository) SetProgress(ctx context.Context, id int64, progress int, now time.Time) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE mission_progress SET current_progress = ?, updated_at = ?
		WHERE id = ? AND is_completed = FALSE
	`), progress, dbTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to update mission progress: %w", err)
	}
	return nil
}

// Complete flips an instance to completed. Only the call that actually
// performs the transition gets true back.
func (r *MissionRepository) Complete(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE mission_progress SET is_completed = TRUE, updated_at = ?
		WHERE id = ? AND is_completed = FALSE
	`), dbTime(now), id)
	if err != nil {
		return false, fmt.Errorf("failed to complete mission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}
