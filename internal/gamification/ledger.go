package gamification

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/lughat/internal/database"
	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
)

// Delta is an additive change to the day's activity
type Delta struct {
	Reviews  int
	Lessons  int
	NewItems int
	Minutes  int
}

// IsZero reports whether the delta carries no activity
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Outcome reports everything one increment changed
type Outcome struct {
	Day               string                   `json:"day"`
	XPGained          int                      `json:"xp_gained"`
	XPTotal           int                      `json:"xp_total"`
	Level             int                      `json:"level"`
	LeveledUp         bool                     `json:"leveled_up"`
	CurrentStreak     int                      `json:"current_streak"`
	LongestStreak     int                      `json:"longest_streak"`
	CompletedMissions []models.MissionProgress `json:"completed_missions,omitempty"`
	NewBadges         []Rule                   `json:"new_badges,omitempty"`
}

// Ledger applies activity to the daily stats and the profile, then runs
// streak, mission and badge evaluation in the same transaction.
type Ledger struct {
	Policy   Policy
	Rules    []Rule
	Missions *MissionTracker
}

// NewLedger creates a ledger with the given policy and badge rules
func NewLedger(policy Policy, rules []Rule, missions *MissionTracker) *Ledger {
	if missions == nil {
		missions = NewMissionTracker(policy.MissionsPerDay, nil)
	}
	return &Ledger{Policy: policy, Rules: rules, Missions: missions}
}

// Standing is the read side of the ledger for one user and day
type Standing struct {
	Day           string
	Today         models.DailyStat
	CurrentStreak int
	LongestStreak int
}

// Standing returns today's counters and the streaks derived from the daily
// stats. The streak columns of the profile only cache the last increment, so
// a streak broken by idle days shows up here before the next activity.
func (l *Ledger) Standing(ctx context.Context, q sqlx.ExtContext, profile *models.GamificationProfile, now time.Time) (*Standing, error) {
	stats := database.NewDailyStatRepository(q)
	day := LocalDay(profile.Timezone, now)

	today, err := stats.GetOrCreate(ctx, profile.UserID, day)
	if err != nil {
		return nil, err
	}
	activeDays, err := stats.ActiveDays(ctx, profile.UserID, l.Policy.Goal)
	if err != nil {
		return nil, err
	}

	st := &Standing{
		Day:           day,
		Today:         *today,
		CurrentStreak: CurrentStreak(activeDays, day),
		LongestStreak: LongestStreak(activeDays),
	}
	if profile.LongestStreak > st.LongestStreak {
		st.LongestStreak = profile.LongestStreak
	}
	return st, nil
}

// Increment records d for the user. q must be the transaction holding the
// profile lock; profile is the row read under that lock.
func (l *Ledger) Increment(ctx context.Context, q sqlx.ExtContext, profile *models.GamificationProfile, d Delta, now time.Time) (*Outcome, error) {
	stats := database.NewDailyStatRepository(q)
	profiles := database.NewProfileRepository(q)

	day := LocalDay(profile.Timezone, now)
	xp := l.Policy.XPFor(d)
	out := &Outcome{Day: day, XPGained: xp, XPTotal: profile.XPTotal, Level: profile.Level}

	// Счётчики дня обновляются одним UPDATE
	if err := stats.Increment(ctx, profile.UserID, day, database.StatDelta{
		Minutes:  d.Minutes,
		Reviews:  d.Reviews,
		NewItems: d.NewItems,
		Lessons:  d.Lessons,
		XP:       xp,
	}); err != nil {
		return nil, err
	}
	if xp != 0 {
		total, err := profiles.AddXP(ctx, profile.UserID, xp, now)
		if err != nil {
			return nil, err
		}
		out.XPTotal = total
	}

	// Activity done before the missions are first viewed still counts
	if _, err := l.Missions.Assign(ctx, q, profile.UserID, day, now); err != nil {
		return nil, err
	}
	completed, missionXP, err := l.Missions.Apply(ctx, q, profile.UserID, day, d, now)
	if err != nil {
		return nil, err
	}
	out.CompletedMissions = completed
	if missionXP > 0 {
		if err := stats.Increment(ctx, profile.UserID, day, database.StatDelta{XP: missionXP}); err != nil {
			return nil, err
		}
		total, err := profiles.AddXP(ctx, profile.UserID, missionXP, now)
		if err != nil {
			return nil, err
		}
		out.XPGained += missionXP
		out.XPTotal = total
	}

	level := l.Policy.LevelFor(profile.Level, out.XPTotal)
	if level > profile.Level {
		raised, err := profiles.RaiseLevel(ctx, profile.UserID, level, now)
		if err != nil {
			return nil, err
		}
		out.LeveledUp = raised
		out.Level = level
	}

	activeDays, err := stats.ActiveDays(ctx, profile.UserID, l.Policy.Goal)
	if err != nil {
		return nil, err
	}
	out.CurrentStreak = CurrentStreak(activeDays, day)
	out.LongestStreak = LongestStreak(activeDays)
	if profile.LongestStreak > out.LongestStreak {
		out.LongestStreak = profile.LongestStreak
	}
	if err := profiles.UpdateStreaks(ctx, profile.UserID, out.CurrentStreak, out.LongestStreak, now); err != nil {
		return nil, err
	}

	badges, err := l.evaluateBadges(ctx, q, profile.UserID, out, now)
	if err != nil {
		return nil, err
	}
	out.NewBadges = badges

	profile.XPTotal = out.XPTotal
	profile.Level = out.Level
	profile.CurrentStreak = out.CurrentStreak
	profile.LongestStreak = out.LongestStreak

	if out.LeveledUp || len(completed) > 0 || len(badges) > 0 {
		slog.Info("progress milestone",
			"user_id", profile.UserID,
			"day", day,
			"level", out.Level,
			"missions_completed", len(completed),
			"badges", len(badges),
		)
	}
	return out, nil
}

func (l *Ledger) evaluateBadges(ctx context.Context, q sqlx.ExtContext, userID int64, out *Outcome, now time.Time) ([]Rule, error) {
	badges := database.NewBadgeRepository(q)

	held, err := badges.IDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	newItems, lessons, err := database.NewDailyStatRepository(q).Totals(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap := Snapshot{
		Streak:   out.CurrentStreak,
		NewItems: newItems,
		Lessons:  lessons,
		XP:       out.XPTotal,
	}

	var awarded []Rule
	for _, rule := range Evaluate(l.Rules, snap, held) {
		ok, err := badges.Award(ctx, userID, rule.ID, now)
		if err != nil {
			return nil, err
		}
		if ok {
			awarded = append(awarded, rule)
		}
	}
	return awarded, nil
}
