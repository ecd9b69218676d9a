package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
)

// DefaultCategory is used for words without a category
const DefaultCategory = "General"

// ContentRepository reads course content owned by the course platform.
// It never writes.
type ContentRepository struct {
	q sqlx.ExtContext
}

// NewContentRepository creates a new content repository
func NewContentRepository(q sqlx.ExtContext) *ContentRepository {
	return &ContentRepository{q: q}
}

// LessonWords returns the word ids of a lesson in lesson order
func (r *ContentRepository) LessonWords(ctx context.Context, lessonID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.q, &ids, r.q.Rebind(`
		SELECT word_id FROM lesson_words WHERE lesson_id = ? ORDER BY position ASC, word_id ASC
	`), lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson words: %w", err)
	}
	return ids, nil
}

// WordCategory returns the category of a word, DefaultCategory when unset
func (r *ContentRepository) WordCategory(ctx context.Context, wordID int64) (string, error) {
	var category sql.NullString
	err := sqlx.GetContext(ctx, r.q, &category, r.q.Rebind("SELECT category FROM words WHERE id = ?"), wordID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get word category: %w", err)
	}
	if !category.Valid || category.String == "" {
		return DefaultCategory, nil
	}
	return category.String, nil
}

// Letters returns the ids of every alphabet letter in alphabet order
func (r *ContentRepository) Letters(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.q, &ids, "SELECT id FROM letters ORDER BY ord ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to get letters: %w", err)
	}
	return ids, nil
}

// CardText returns what a card shows on its front: the word text or the letter symbol
func (r *ContentRepository) CardText(ctx context.Context, target models.CardTarget) (string, error) {
	query := "SELECT text FROM words WHERE id = ?"
	if target.Kind() == models.TargetLetter {
		query = "SELECT symbol FROM letters WHERE id = ?"
	}
	var text string
	err := sqlx.GetContext(ctx, r.q, &text, r.q.Rebind(query), target.ID())
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get card text: %w", err)
	}
	return text, nil
}
