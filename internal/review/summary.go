package review

import (
	"context"
	"fmt"
	"time"

	"github.com/example/lughat/internal/database"
	"github.com/example/lughat/internal/gamification"
	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
)

// Summary is the dashboard view of a user's progress
type Summary struct {
	Profile  models.GamificationProfile `json:"profile"`
	Today    models.DailyStat           `json:"today"`
	GoalMet  bool                       `json:"goal_met"`
	DueCount int                        `json:"due_count"`
	Level    gamification.LevelProgress `json:"level"`
}

// Summary returns xp, level, streaks, hearts and today's counters
func (s *Service) Summary(ctx context.Context, userID int64) (*Summary, error) {
	now := s.now()
	profile, err := database.NewProfileRepository(s.db).GetOrCreate(ctx, userID, s.defaultTimezone, now)
	if err != nil {
		return nil, err
	}
	standing, err := s.ledger.Standing(ctx, s.db, profile, now)
	if err != nil {
		return nil, err
	}
	profile.CurrentStreak = standing.CurrentStreak
	profile.LongestStreak = standing.LongestStreak
	due, err := database.NewCardRepository(s.db).CountDue(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Profile:  *profile,
		Today:    standing.Today,
		GoalMet:  s.policy.Goal.Met(standing.Today),
		DueCount: due,
		Level:    s.policy.Progress(profile.Level, profile.XPTotal),
	}, nil
}

// LiveStats returns the level bar for polling clients
func (s *Service) LiveStats(ctx context.Context, userID int64) (*gamification.LevelProgress, error) {
	profile, err := database.NewProfileRepository(s.db).GetOrCreate(ctx, userID, s.defaultTimezone, s.now())
	if err != nil {
		return nil, err
	}
	progress := s.policy.Progress(profile.Level, profile.XPTotal)
	return &progress, nil
}

// TodayMissions returns the user's missions for the local day, assigning
// them if no activity has done so yet.
func (s *Service) TodayMissions(ctx context.Context, userID int64) ([]models.MissionProgress, error) {
	now := s.now()
	var missions []models.MissionProgress
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		profile, err := database.NewProfileRepository(tx).Lock(ctx, userID, s.defaultTimezone, now)
		if err != nil {
			return err
		}
		day := gamification.LocalDay(profile.Timezone, now)
		missions, err = s.ledger.Missions.Assign(ctx, tx, userID, day, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get today's missions: %w", err)
	}
	return missions, nil
}

// EarnedBadge is a held badge with its catalog entry
type EarnedBadge struct {
	gamification.Rule
	EarnedAt time.Time `json:"earned_at"`
}

// Badges returns the user's badges. Ids no longer in the catalog are
// returned with the id as title.
func (s *Service) Badges(ctx context.Context, userID int64) ([]EarnedBadge, error) {
	held, err := database.NewBadgeRepository(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	badges := make([]EarnedBadge, 0, len(held))
	for _, b := range held {
		rule, ok := gamification.FindRule(s.ledger.Rules, b.BadgeID)
		if !ok {
			rule = gamification.Rule{ID: b.BadgeID, Title: b.BadgeID}
		}
		badges = append(badges, EarnedBadge{Rule: rule, EarnedAt: b.EarnedAt})
	}
	return badges, nil
}

// WeakAreas returns the stored weak-area snapshot
func (s *Service) WeakAreas(ctx context.Context, userID int64) ([]models.WeakArea, error) {
	return database.NewWeakAreaRepository(s.db).ListByUser(ctx, userID)
}

// RecomputeWeakAreas rebuilds the snapshot from current item strengths
func (s *Service) RecomputeWeakAreas(ctx context.Context, userID int64) ([]models.WeakArea, error) {
	now := s.now()
	var areas []models.WeakArea
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := database.NewProfileRepository(tx).Lock(ctx, userID, s.defaultTimezone, now); err != nil {
			return err
		}
		var err error
		areas, err = gamification.RecomputeWeakAreas(ctx, tx, s.policy, userID, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to recompute weak areas: %w", err)
	}
	return areas, nil
}

// SpendHeart takes a heart for a wrong exercise answer and returns how many are left
func (s *Service) SpendHeart(ctx context.Context, userID int64) (int, error) {
	now := s.now()
	var hearts int
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		profiles := database.NewProfileRepository(tx)
		if _, err := profiles.Lock(ctx, userID, s.defaultTimezone, now); err != nil {
			return err
		}
		ok, err := profiles.SpendHeart(ctx, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoHearts
		}
		p, err := profiles.Get(ctx, userID)
		if err != nil {
			return err
		}
		hearts = p.Hearts
		return nil
	})
	if err != nil {
		return 0, err
	}
	return hearts, nil
}

// SetReminder switches the daily reminder on at a local hour, or off
func (s *Service) SetReminder(ctx context.Context, userID int64, enabled bool, hour int) error {
	if hour < 0 || hour > 23 {
		return ErrInvalidHour
	}
	now := s.now()
	profiles := database.NewProfileRepository(s.db)
	if err := profiles.Ensure(ctx, userID, s.defaultTimezone, now); err != nil {
		return err
	}
	return profiles.UpdateReminder(ctx, userID, enabled, hour, now)
}

// SetTimezone changes the zone that decides the user's calendar day
func (s *Service) SetTimezone(ctx context.Context, userID int64, timezone string) error {
	if timezone == "" {
		return ErrInvalidTimezone
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimezone, timezone)
	}
	now := s.now()
	profiles := database.NewProfileRepository(s.db)
	if err := profiles.Ensure(ctx, userID, timezone, now); err != nil {
		return err
	}
	return profiles.SetTimezone(ctx, userID, timezone, now)
}

// ReminderCandidates returns the profiles with reminders on whose local
// hour at now equals their reminder hour
func (s *Service) ReminderCandidates(ctx context.Context, now time.Time) ([]models.GamificationProfile, error) {
	profiles, err := database.NewProfileRepository(s.db).ListReminderCandidates(ctx)
	if err != nil {
		return nil, err
	}
	var due []models.GamificationProfile
	for _, p := range profiles {
		if localHour(p.Timezone, now) == p.ReminderHour {
			due = append(due, p)
		}
	}
	return due, nil
}

func localHour(timezone string, now time.Time) int {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = time.UTC
	}
	return now.In(loc).Hour()
}
