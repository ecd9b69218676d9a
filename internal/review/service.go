// Package review is the entry point for learner activity: graded reviews,
// completed lessons and saved vocabulary. Each event is applied in one
// transaction that holds the user's profile lock.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/example/lughat/internal/database"
	"github.com/example/lughat/internal/gamification"
	sr "github.com/example/lughat/internal/spaced_repetition"
	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
)

// PassRatio is the lesson score from which the lesson's words get cards
const PassRatio = 0.6

// Catalog gives read-only access to course content
type Catalog interface {
	LessonWords(ctx context.Context, lessonID int64) ([]int64, error)
	WordCategory(ctx context.Context, wordID int64) (string, error)
	Letters(ctx context.Context) ([]int64, error)
}

// Options tune a Service. Zero values fall back to defaults.
type Options struct {
	Policy          *gamification.Policy
	Rules           []gamification.Rule
	Clock           func() time.Time
	Rand            *rand.Rand
	DefaultTimezone string
	LessonCardLimit int
	DueLimit        int
}

// Service applies learner events to cards, item strengths and the ledger
type Service struct {
	db      *sqlx.DB
	catalog Catalog
	ledger  *gamification.Ledger
	policy  gamification.Policy

	clock           func() time.Time
	defaultTimezone string
	lessonCardLimit int
	dueLimit        int
}

// NewService creates a review service
func NewService(db *sqlx.DB, catalog Catalog, opts Options) *Service {
	policy := gamification.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	rules := opts.Rules
	if rules == nil {
		rules = gamification.DefaultRules()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "UTC"
	}
	if opts.LessonCardLimit <= 0 {
		opts.LessonCardLimit = 30
	}
	if opts.DueLimit <= 0 {
		opts.DueLimit = 20
	}

	missions := gamification.NewMissionTracker(policy.MissionsPerDay, opts.Rand)
	return &Service{
		db:              db,
		catalog:         catalog,
		ledger:          gamification.NewLedger(policy, rules, missions),
		policy:          policy,
		clock:           opts.Clock,
		defaultTimezone: opts.DefaultTimezone,
		lessonCardLimit: opts.LessonCardLimit,
		dueLimit:        opts.DueLimit,
	}
}

// Policy returns the ledger policy in use
func (s *Service) Policy() gamification.Policy {
	return s.policy
}

// Rules returns the badge catalog in use
func (s *Service) Rules() []gamification.Rule {
	return s.ledger.Rules
}

func (s *Service) now() time.Time {
	return s.clock()
}

// GradeEvent is a graded review of one card
type GradeEvent struct {
	UserID int64
	CardID int64
	Grade  int
	// Key identifies the submission; a repeated key is ignored
	Key string
}

// GradeResult is what a grade changed
type GradeResult struct {
	Card      *models.Card          `json:"card"`
	Duplicate bool                  `json:"duplicate"`
	Strength  *int                  `json:"strength,omitempty"`
	Outcome   *gamification.Outcome `json:"outcome,omitempty"`
}

// Grade applies a review grade to a card owned by the user
func (s *Service) Grade(ctx context.Context, ev GradeEvent) (*GradeResult, error) {
	start := time.Now()
	defer func() { eventDuration.WithLabelValues("grade").Observe(time.Since(start).Seconds()) }()

	now := s.now()
	cards := database.NewCardRepository(s.db)

	card, err := cards.GetByID(ctx, ev.CardID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}
	if card.UserID != ev.UserID {
		return nil, ErrForbidden
	}

	// Каталог читаем до транзакции
	category := database.DefaultCategory
	wordID, isWord := card.Target.WordID()
	if isWord {
		category, err = s.catalog.WordCategory(ctx, wordID)
		if errors.Is(err, database.ErrNotFound) {
			category = database.DefaultCategory
		} else if err != nil {
			return nil, fmt.Errorf("failed to get word category: %w", err)
		}
	}

	quality := sr.ClampQuality(ev.Grade)
	result := &GradeResult{}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		profile, err := database.NewProfileRepository(tx).Lock(ctx, ev.UserID, s.defaultTimezone, now)
		if err != nil {
			return err
		}

		if ev.Key != "" {
			fresh, err := database.NewGradeEventRepository(tx).Record(ctx, ev.UserID, ev.Key, ev.CardID, int(quality), now)
			if err != nil {
				return err
			}
			if !fresh {
				result.Duplicate = true
				return nil
			}
		}

		txCards := database.NewCardRepository(tx)
		card, err := txCards.GetByID(ctx, ev.CardID)
		if err != nil {
			return err
		}

		next := sr.Next(sr.State{
			Repetitions:  card.Repetitions,
			IntervalDays: card.IntervalDays,
			EaseFactor:   card.EaseFactor,
			DueAt:        card.DueAt,
		}, int(quality), now)
		card.Repetitions = next.Repetitions
		card.IntervalDays = next.IntervalDays
		card.EaseFactor = next.EaseFactor
		card.DueAt = next.DueAt
		if err := txCards.UpdateSchedule(ctx, card, now); err != nil {
			return err
		}
		result.Card = card

		if isWord {
			strength, err := s.adjustStrength(ctx, tx, ev.UserID, wordID, category, quality, now)
			if err != nil {
				return err
			}
			result.Strength = &strength
		}

		if quality.Passed() {
			if err := database.NewProfileRepository(tx).RestoreHeart(ctx, ev.UserID, now); err != nil {
				return err
			}
		}

		out, err := s.ledger.Increment(ctx, tx, profile, gamification.Delta{
			Reviews: 1,
			Minutes: s.policy.MinutesPerReview,
		}, now)
		if err != nil {
			return err
		}
		result.Outcome = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to grade card %d: %w", ev.CardID, err)
	}

	if result.Duplicate {
		gradesTotal.WithLabelValues("duplicate").Inc()
		slog.Debug("duplicate grade ignored", "user_id", ev.UserID, "card_id", ev.CardID, "key", ev.Key)
		// повторная отправка: вернуть текущее состояние карточки
		if card, err := cards.GetByID(ctx, ev.CardID); err == nil {
			result.Card = card
		}
		return result, nil
	}

	if quality.Passed() {
		gradesTotal.WithLabelValues("passed").Inc()
	} else {
		gradesTotal.WithLabelValues("failed").Inc()
	}
	s.observe(result.Outcome)
	return result, nil
}

// strengthDelta is the change of item strength for one grade
func strengthDelta(q sr.QualityResponse) int {
	switch {
	case q >= sr.QualityCorrectHesitation:
		return 10
	case q == sr.QualityCorrectDifficult:
		return 5
	default:
		return -5
	}
}

func (s *Service) adjustStrength(ctx context.Context, q sqlx.ExtContext, userID, wordID int64, category string, quality sr.QualityResponse, now time.Time) (int, error) {
	strengths := database.NewItemStrengthRepository(q)
	if _, err := strengths.Ensure(ctx, userID, wordID, category, now); err != nil {
		return 0, err
	}
	before, after, err := strengths.Adjust(ctx, userID, wordID, strengthDelta(quality), now)
	if err != nil {
		return 0, err
	}

	if before < s.policy.WeakThreshold || after < s.policy.WeakThreshold {
		if _, err := gamification.RecomputeWeakAreas(ctx, q, s.policy, userID, now); err != nil {
			return 0, err
		}
	}
	return after, nil
}

// LessonEvent is a finished lesson with its score as a ratio of 0..1
type LessonEvent struct {
	UserID     int64
	LessonID   int64
	ScoreRatio float64
}

// LessonResult is what a completed lesson changed
type LessonResult struct {
	CardsCreated int                   `json:"cards_created"`
	Outcome      *gamification.Outcome `json:"outcome"`
}

// CompleteLesson records a finished lesson and, on a passing score, makes
// sure the lesson's words are scheduled.
func (s *Service) CompleteLesson(ctx context.Context, ev LessonEvent) (*LessonResult, error) {
	start := time.Now()
	defer func() { eventDuration.WithLabelValues("lesson").Observe(time.Since(start).Seconds()) }()

	now := s.now()
	ratio := ev.ScoreRatio
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	var targets []models.CardTarget
	if ratio >= PassRatio {
		var err error
		targets, err = s.lessonTargets(ctx, ev.LessonID, s.lessonCardLimit)
		if err != nil {
			return nil, err
		}
	}

	result := &LessonResult{}
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		profile, err := database.NewProfileRepository(tx).Lock(ctx, ev.UserID, s.defaultTimezone, now)
		if err != nil {
			return err
		}
		if len(targets) > 0 {
			created, err := database.NewCardRepository(tx).CreateMissing(ctx, ev.UserID, targets, now)
			if err != nil {
				return err
			}
			result.CardsCreated = created
		}

		out, err := s.ledger.Increment(ctx, tx, profile, gamification.Delta{
			Lessons: 1,
			Minutes: s.policy.MinutesPerLesson,
		}, now)
		if err != nil {
			return err
		}
		result.Outcome = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete lesson %d: %w", ev.LessonID, err)
	}

	lessonsTotal.Inc()
	s.observe(result.Outcome)
	slog.Info("lesson completed",
		"user_id", ev.UserID,
		"lesson_id", ev.LessonID,
		"ratio", ratio,
		"cards_created", result.CardsCreated,
	)
	return result, nil
}

func (s *Service) lessonTargets(ctx context.Context, lessonID int64, limit int) ([]models.CardTarget, error) {
	words, err := s.catalog.LessonWords(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson words: %w", err)
	}
	if limit > 0 && len(words) > limit {
		words = words[:limit]
	}
	targets := make([]models.CardTarget, 0, len(words))
	for _, id := range words {
		targets = append(targets, models.WordTarget(id))
	}
	return targets, nil
}

// EnsureCardsForLesson creates cards for the first limit words of a lesson
// that have none yet. Existing cards keep their schedule.
func (s *Service) EnsureCardsForLesson(ctx context.Context, userID, lessonID int64, limit int) (int, error) {
	if limit <= 0 {
		limit = s.lessonCardLimit
	}
	targets, err := s.lessonTargets(ctx, lessonID, limit)
	if err != nil {
		return 0, err
	}
	return database.NewCardRepository(s.db).CreateMissing(ctx, userID, targets, s.now())
}

// SeedLetterCards schedules every alphabet letter for the user
func (s *Service) SeedLetterCards(ctx context.Context, userID int64) (int, error) {
	letters, err := s.catalog.Letters(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get letters: %w", err)
	}
	targets := make([]models.CardTarget, 0, len(letters))
	for _, id := range letters {
		targets = append(targets, models.LetterTarget(id))
	}
	return database.NewCardRepository(s.db).CreateMissing(ctx, userID, targets, s.now())
}

// SaveEvent is a word the user added to their vocabulary
type SaveEvent struct {
	UserID int64
	WordID int64
}

// SaveResult is what saving a word changed
type SaveResult struct {
	Card    *models.Card          `json:"card"`
	Created bool                  `json:"created"`
	Outcome *gamification.Outcome `json:"outcome,omitempty"`
}

// SaveItem adds a word to the user's vocabulary. Only the first save of a
// word counts as a new item.
func (s *Service) SaveItem(ctx context.Context, ev SaveEvent) (*SaveResult, error) {
	start := time.Now()
	defer func() { eventDuration.WithLabelValues("save").Observe(time.Since(start).Seconds()) }()

	now := s.now()
	category, err := s.catalog.WordCategory(ctx, ev.WordID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrWordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word category: %w", err)
	}

	result := &SaveResult{}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		profile, err := database.NewProfileRepository(tx).Lock(ctx, ev.UserID, s.defaultTimezone, now)
		if err != nil {
			return err
		}
		tracked, err := database.NewItemStrengthRepository(tx).Ensure(ctx, ev.UserID, ev.WordID, category, now)
		if err != nil {
			return err
		}
		card, created, err := database.NewCardRepository(tx).GetOrCreate(ctx, ev.UserID, models.WordTarget(ev.WordID), now)
		if err != nil {
			return err
		}
		result.Card = card
		result.Created = created

		// a new strength row starts at 0, which is weak
		if tracked {
			if _, err := gamification.RecomputeWeakAreas(ctx, tx, s.policy, ev.UserID, now); err != nil {
				return err
			}
		}
		if !created {
			return nil
		}
		out, err := s.ledger.Increment(ctx, tx, profile, gamification.Delta{NewItems: 1}, now)
		if err != nil {
			return err
		}
		result.Outcome = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save word %d: %w", ev.WordID, err)
	}

	if result.Created {
		itemsSavedTotal.Inc()
		s.observe(result.Outcome)
	}
	return result, nil
}

// DueCards returns the user's review queue
func (s *Service) DueCards(ctx context.Context, userID int64, limit int) ([]models.Card, error) {
	if limit <= 0 {
		limit = s.dueLimit
	}
	return database.NewCardRepository(s.db).GetDue(ctx, userID, s.now(), limit)
}

// CountDue returns how many cards are waiting for the user
func (s *Service) CountDue(ctx context.Context, userID int64) (int, error) {
	return database.NewCardRepository(s.db).CountDue(ctx, userID, s.now())
}

func (s *Service) observe(out *gamification.Outcome) {
	if out == nil {
		return
	}
	missionsCompletedTotal.Add(float64(len(out.CompletedMissions)))
	for _, b := range out.NewBadges {
		badgesAwardedTotal.WithLabelValues(b.ID).Inc()
	}
}
