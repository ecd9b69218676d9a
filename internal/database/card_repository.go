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

// CardRepository handles database operations for review cards
type CardRepository struct {
	q sqlx.ExtContext
}

// NewCardRepository creates a repository bound to a connection or transaction
func NewCardRepository(q sqlx.ExtContext) *CardRepository {
	return &CardRepository{q: q}
}

// cardRow mirrors the cards table; the target is rebuilt into a CardTarget on read
type cardRow struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	TargetKind   string    `db:"target_kind"`
	TargetID     int64     `db:"target_id"`
	Repetitions  int       `db:"repetitions"`
	IntervalDays int       `db:"interval_days"`
	EaseFactor   float64   `db:"ease_factor"`
	DueAt        time.Time `db:"due_at"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r cardRow) toModel() (*models.Card, error) {
	target, err := models.ParseCardTarget(r.TargetKind, r.TargetID)
	if err != nil {
		return nil, fmt.Errorf("card %d: %w", r.ID, err)
	}
	return &models.Card{
		ID:           r.ID,
		UserID:       r.UserID,
		Target:       target,
		Repetitions:  r.Repetitions,
		IntervalDays: r.IntervalDays,
		EaseFactor:   r.EaseFactor,
		DueAt:        r.DueAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

const cardColumns = `id, user_id, target_kind, target_id, repetitions, interval_days,
	ease_factor, due_at, created_at, updated_at`

// GetByID returns a card by ID
func (r *CardRepository) GetByID(ctx context.Context, id int64) (*models.Card, error) {
	var row cardRow
	err := sqlx.GetContext(ctx, r.q, &row, r.q.Rebind("SELECT "+cardColumns+" FROM cards WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %d: %w", id, err)
	}
	return row.toModel()
}

// GetByTarget returns the user's card for a word or letter
func (r *CardRepository) GetByTarget(ctx context.Context, userID int64, target models.CardTarget) (*models.Card, error) {
	var row cardRow
	err := sqlx.GetContext(ctx, r.q, &row, r.q.Rebind(
		"SELECT "+cardColumns+" FROM cards WHERE user_id = ? AND target_kind = ? AND target_id = ?"),
		userID, string(target.Kind()), target.ID())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", target, err)
	}
	return row.toModel()
}

// insertIfMissing creates a fresh card unless one exists for the same target.
// Existing scheduling state is never touched.
func (r *CardRepository) insertIfMissing(ctx context.Context, userID int64, target models.CardTarget, now time.Time) (bool, error) {
	now = dbTime(now)
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO cards (
			user_id, target_kind, target_id, repetitions, interval_days,
			ease_factor, due_at, created_at, updated_at
		) VALUES (?, ?, ?, 0, 0, 2.5, ?, ?, ?)
		ON CONFLICT (user_id, target_kind, target_id) DO NOTHING
	`), userID, string(target.Kind()), target.ID(), now, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to create card %s: %w", target, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// GetOrCreate returns the user's card for target, creating it on first exposure
func (r *CardRepository) GetOrCreate(ctx context.Context, userID int64, target models.CardTarget, now time.Time) (*models.Card, bool, error) {
	if target.IsZero() {
		return nil, false, fmt.Errorf("card target is not set")
	}
	created, err := r.insertIfMissing(ctx, userID, target, now)
	if err != nil {
		return nil, false, err
	}
	card, err := r.GetByTarget(ctx, userID, target)
	if err != nil {
		return nil, false, err
	}
	return card, created, nil
}

// CreateMissing creates cards for every target that has none yet and
// returns how many were created. Safe to retry.
func (r *CardRepository) CreateMissing(ctx context.Context, userID int64, targets []models.CardTarget, now time.Time) (int, error) {
	created := 0
	for _, target := range targets {
		ok, err := r.insertIfMissing(ctx, userID, target, now)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// UpdateSchedule persists new SM-2 state for a card owned by the user
func (r *CardRepository) UpdateSchedule(ctx context.Context, card *models.Card, now time.Time) error {
	card.DueAt = dbTime(card.DueAt)
	card.UpdatedAt = dbTime(now)
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
		UPDATE cards SET
			repetitions = ?,
			interval_days = ?,
			ease_factor = ?,
			due_at = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ?
	`),
		card.Repetitions,
		card.IntervalDays,
		card.EaseFactor,
		card.DueAt,
		card.UpdatedAt,
		card.ID,
		card.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %d: %w", card.ID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDue returns the user's cards with due_at <= now, oldest first
func (r *CardRepository) GetDue(ctx context.Context, userID int64, now time.Time, limit int) ([]models.Card, error) {
	var rows []cardRow
	err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(`
		SELECT `+cardColumns+` FROM cards
		WHERE user_id = ? AND due_at <= ?
		ORDER BY due_at ASC, id ASC
		LIMIT ?
	`), userID, dbTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards: %w", err)
	}

	cards := make([]models.Card, 0, len(rows))
	for _, row := range rows {
		card, err := row.toModel()
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, nil
}

// CountDue returns how many of the user's cards are due
func (r *CardRepository) CountDue(ctx context.Context, userID int64, now time.Time) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.q, &count, r.q.Rebind(
		"SELECT COUNT(*) FROM cards WHERE user_id = ? AND due_at <= ?"), userID, dbTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to count due cards: %w", err)
	}
	return count, nil
}

// CountByUser returns the total number of cards of a user
func (r *CardRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.q, &count, r.q.Rebind("SELECT COUNT(*) FROM cards WHERE user_id = ?"), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return count, nil
}
