package gamification

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/example/lughat/internal/database"
	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func TestXPFor(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 1, p.XPFor(Delta{Reviews: 1, Minutes: 1}))
	assert.Equal(t, 10, p.XPFor(Delta{Lessons: 1, Minutes: 5}))
	assert.Equal(t, 2, p.XPFor(Delta{NewItems: 1}))
	assert.Equal(t, 0, p.XPFor(Delta{Minutes: 30}))
}

func TestLevelFor(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		level, xp, want int
	}{
		{1, 0, 1},
		{1, 99, 1},
		{1, 100, 2},
		{1, 199, 2},
		{1, 200, 3},
		{1, 300, 4},
		{5, 10, 5}, // never goes down
		{0, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.LevelFor(tt.level, tt.xp), "level %d xp %d", tt.level, tt.xp)
	}
}

func TestProgress(t *testing.T) {
	p := DefaultPolicy()

	first := p.Progress(1, 33)
	assert.Equal(t, 100, first.NextLevelXP)
	assert.Equal(t, 33, first.Percent)
	assert.Equal(t, 33, first.LevelXPCurrent)
	assert.Equal(t, 100, first.LevelXPMax)

	third := p.Progress(3, 250)
	assert.Equal(t, 300, third.NextLevelXP)
	assert.Equal(t, 50, third.LevelXPCurrent)
	assert.Equal(t, 100, third.LevelXPMax)
	assert.Equal(t, 50, third.Percent)

	over := p.Progress(2, 1000)
	assert.Equal(t, 100, over.Percent)
}

func TestCurrentStreak(t *testing.T) {
	tests := []struct {
		name  string
		days  []string
		today string
		want  int
	}{
		{"empty", nil, "2026-03-10", 0},
		{"today only", []string{"2026-03-10"}, "2026-03-10", 1},
		{"grace for unfinished today", []string{"2026-03-08", "2026-03-09"}, "2026-03-10", 2},
		{"three in a row", []string{"2026-03-08", "2026-03-09", "2026-03-10"}, "2026-03-10", 3},
		{"gap breaks", []string{"2026-03-07", "2026-03-09", "2026-03-10"}, "2026-03-10", 2},
		{"stale", []string{"2026-03-01", "2026-03-02"}, "2026-03-10", 0},
		{"month boundary", []string{"2026-02-27", "2026-02-28", "2026-03-01"}, "2026-03-01", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentStreak(tt.days, tt.today))
		})
	}
}

func TestCurrentStreakGrowsWithConsecutiveDays(t *testing.T) {
	start := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	var days []string
	prev := 0
	for i := 0; i < 20; i++ {
		day := start.AddDate(0, 0, i).Format(DayLayout)
		days = append(days, day)
		cur := CurrentStreak(days, day)
		assert.GreaterOrEqual(t, cur, prev, day)
		prev = cur
	}
	assert.Equal(t, 20, prev)
}

func TestLongestStreak(t *testing.T) {
	assert.Equal(t, 0, LongestStreak(nil))
	assert.Equal(t, 1, LongestStreak([]string{"2026-03-01"}))
	assert.Equal(t, 3, LongestStreak([]string{
		"2026-03-01", "2026-03-02", "2026-03-05", "2026-03-06", "2026-03-07", "2026-03-09",
	}))
	// unsorted input with duplicates
	assert.Equal(t, 2, LongestStreak([]string{"2026-03-02", "2026-03-01", "2026-03-02"}))
}

func TestLocalDay(t *testing.T) {
	late := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-10", LocalDay("UTC", late))
	assert.Equal(t, "2026-03-11", LocalDay("Asia/Tashkent", late))
	assert.Equal(t, "2026-03-10", LocalDay("Not/AZone", late))
	assert.Equal(t, "2026-03-10", LocalDay("", late))
}

func TestEvaluateSkipsHeldBadges(t *testing.T) {
	rules := DefaultRules()
	snap := Snapshot{Streak: 7, NewItems: 60, Lessons: 2, XP: 600}

	earned := Evaluate(rules, snap, map[string]bool{"streak_3": true})
	ids := make([]string, 0, len(earned))
	for _, r := range earned {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"streak_7", "words_50", "xp_500"}, ids)

	assert.Empty(t, Evaluate(rules, Snapshot{}, nil))

	r, ok := FindRule(rules, "lessons_30")
	assert.True(t, ok)
	assert.Equal(t, 30, r.Threshold)
}

func TestBuildWeakAreas(t *testing.T) {
	counts := []database.CategoryCount{
		{Category: "Travel", Count: 1},
		{Category: "Food", Count: 7},
		{Category: "Animals", Count: 1},
		{Category: "Colors", Count: 2},
	}
	areas := BuildWeakAreas(1, counts, 3)
	require.Len(t, areas, 3)
	assert.Equal(t, "Food", areas[0].Category)
	assert.Equal(t, 100, areas[0].Urgency)
	assert.Equal(t, "Colors", areas[1].Category)
	assert.Equal(t, 40, areas[1].Urgency)
	assert.Equal(t, "Animals", areas[2].Category)
	assert.Equal(t, 20, areas[2].Urgency)
	// input is not reordered
	assert.Equal(t, "Travel", counts[0].Category)
}

func TestAdvanceCapsProgress(t *testing.T) {
	m := models.MissionProgress{MissionType: models.MissionReview, RequiredCount: 5, CurrentProgress: 4}

	progress, done := advance(m, Delta{Reviews: 3})
	assert.Equal(t, 5, progress)
	assert.True(t, done)

	progress, done = advance(m, Delta{Lessons: 1})
	assert.Equal(t, 4, progress)
	assert.False(t, done)

	timeMission := models.MissionProgress{MissionType: models.MissionTime, RequiredCount: 15}
	progress, _ = advance(timeMission, Delta{Minutes: 5})
	assert.Equal(t, 5, progress)
}

func TestPickWithoutReplacement(t *testing.T) {
	tracker := NewMissionTracker(3, rand.New(rand.NewSource(1)))
	templates := []models.MissionTemplate{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}

	for i := 0; i < 50; i++ {
		picked := tracker.pick(templates, map[int64]bool{2: true}, 3)
		require.Len(t, picked, 3)
		seen := map[int64]bool{}
		for _, p := range picked {
			assert.NotEqual(t, int64(2), p.ID)
			assert.False(t, seen[p.ID], "duplicate %d", p.ID)
			seen[p.ID] = true
		}
	}

	assert.Len(t, tracker.pick(templates[:2], nil, 3), 2)
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(database.DriverSQLite3, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedTemplates(t *testing.T, db *sqlx.DB, templates ...models.MissionTemplate) {
	t.Helper()
	repo := database.NewMissionRepository(db)
	for i := range templates {
		_, err := repo.UpsertTemplate(context.Background(), &templates[i])
		require.NoError(t, err)
	}
}

func increment(t *testing.T, db *sqlx.DB, l *Ledger, userID int64, d Delta, now time.Time) *Outcome {
	t.Helper()
	ctx := context.Background()
	var out *Outcome
	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		profile, err := database.NewProfileRepository(tx).Lock(ctx, userID, "UTC", now)
		if err != nil {
			return err
		}
		out, err = l.Increment(ctx, tx, profile, d, now)
		return err
	})
	require.NoError(t, err)
	return out
}

func TestLedgerStreakAndXPOverThreeDays(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(DefaultPolicy(), DefaultRules(), nil)

	var out *Outcome
	for day := 0; day < 3; day++ {
		now := t0.AddDate(0, 0, day)
		increment(t, db, l, 1, Delta{Reviews: 1, Minutes: 1}, now)
		out = increment(t, db, l, 1, Delta{Lessons: 1, Minutes: 5}, now.Add(time.Minute))
	}

	assert.Equal(t, 3, out.CurrentStreak)
	assert.Equal(t, 3, out.LongestStreak)
	assert.Equal(t, 33, out.XPTotal)
	assert.Equal(t, 1, out.Level)
	require.Len(t, out.NewBadges, 1)
	assert.Equal(t, "streak_3", out.NewBadges[0].ID)

	stat, err := database.NewDailyStatRepository(db).Get(context.Background(), 1, "2026-03-12")
	require.NoError(t, err)
	assert.Equal(t, 6, stat.Minutes)
	assert.Equal(t, 11, stat.XPEarned)
}

func TestLedgerLevelUp(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(DefaultPolicy(), DefaultRules(), nil)

	out := increment(t, db, l, 1, Delta{Lessons: 10}, t0)
	assert.Equal(t, 100, out.XPTotal)
	assert.Equal(t, 2, out.Level)
	assert.True(t, out.LeveledUp)

	out = increment(t, db, l, 1, Delta{Reviews: 1}, t0)
	assert.False(t, out.LeveledUp)
	assert.Equal(t, 2, out.Level)

	ids, err := database.NewBadgeRepository(db).IDs(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ids["lessons_10"])
}

func TestLedgerMissionCompletesOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedTemplates(t, db, models.MissionTemplate{
		Title: "Review 2 cards", MissionType: models.MissionReview, RequiredCount: 2, XPReward: 15, IsActive: true,
	})
	l := NewLedger(DefaultPolicy(), nil, NewMissionTracker(3, rand.New(rand.NewSource(7))))

	missions, err := l.Missions.Assign(ctx, db, 1, "2026-03-10", t0)
	require.NoError(t, err)
	require.Len(t, missions, 1)

	out := increment(t, db, l, 1, Delta{Reviews: 1}, t0)
	assert.Empty(t, out.CompletedMissions)
	assert.Equal(t, 1, out.XPTotal)

	out = increment(t, db, l, 1, Delta{Reviews: 1}, t0)
	require.Len(t, out.CompletedMissions, 1)
	assert.Equal(t, 2+15, out.XPTotal)

	out = increment(t, db, l, 1, Delta{Reviews: 5}, t0)
	assert.Empty(t, out.CompletedMissions)
	assert.Equal(t, 2+15+5, out.XPTotal)

	stat, err := database.NewDailyStatRepository(db).Get(ctx, 1, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 22, stat.XPEarned)

	missions, err = database.NewMissionRepository(db).ListForDay(ctx, 1, "2026-03-10")
	require.NoError(t, err)
	require.Len(t, missions, 1)
	assert.Equal(t, 2, missions[0].CurrentProgress)
	assert.True(t, missions[0].IsCompleted)
}

func TestLedgerAssignsMissionsOnFirstIncrement(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedTemplates(t, db, models.MissionTemplate{
		Title: "Study 10 minutes", MissionType: models.MissionTime, RequiredCount: 10, XPReward: 5, IsActive: true,
	})
	l := NewLedger(DefaultPolicy(), nil, NewMissionTracker(3, rand.New(rand.NewSource(1))))

	increment(t, db, l, 1, Delta{Reviews: 1, Minutes: 4}, t0)

	missions, err := database.NewMissionRepository(db).ListForDay(ctx, 1, "2026-03-10")
	require.NoError(t, err)
	require.Len(t, missions, 1)
	assert.Equal(t, 4, missions[0].CurrentProgress)

	// a later view returns the same rows
	viewed, err := l.Missions.Assign(ctx, db, 1, "2026-03-10", t0)
	require.NoError(t, err)
	assert.Equal(t, missions, viewed)
}

func TestStandingRecomputesStreak(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	l := NewLedger(DefaultPolicy(), DefaultRules(), nil)

	for day := 0; day < 3; day++ {
		increment(t, db, l, 1, Delta{Lessons: 1}, t0.AddDate(0, 0, day))
	}
	profile, err := database.NewProfileRepository(db).Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, profile.CurrentStreak)

	st, err := l.Standing(ctx, db, profile, t0.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, st.CurrentStreak)
	assert.Equal(t, "2026-03-13", st.Day)
	assert.Zero(t, st.Today.Lessons)

	st, err = l.Standing(ctx, db, profile, t0.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, st.CurrentStreak)
	assert.Equal(t, 3, st.LongestStreak)
}

func TestMissionAssignIsLazyAndCapped(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	var templates []models.MissionTemplate
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		templates = append(templates, models.MissionTemplate{
			Title: title, MissionType: models.MissionLesson, RequiredCount: 1, XPReward: 5, IsActive: true,
		})
	}
	templates = append(templates, models.MissionTemplate{
		Title: "off", MissionType: models.MissionLesson, RequiredCount: 1, XPReward: 5, IsActive: false,
	})
	seedTemplates(t, db, templates...)

	tracker := NewMissionTracker(3, rand.New(rand.NewSource(3)))
	first, err := tracker.Assign(ctx, db, 1, "2026-03-10", t0)
	require.NoError(t, err)
	require.Len(t, first, 3)

	again, err := tracker.Assign(ctx, db, 1, "2026-03-10", t0)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	seen := map[int64]bool{}
	for _, m := range first {
		assert.NotEqual(t, "off", m.Title)
		assert.False(t, seen[m.MissionID])
		seen[m.MissionID] = true
	}

	next, err := tracker.Assign(ctx, db, 1, "2026-03-11", t0.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, next, 3)
}

func TestRecomputeWeakAreas(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	strengths := database.NewItemStrengthRepository(db)
	for id, cat := range map[int64]string{1: "Food", 2: "Food", 3: "Travel", 4: "Home", 5: "Work"} {
		_, err := strengths.Ensure(ctx, 1, id, cat, t0)
		require.NoError(t, err)
	}

	areas, err := RecomputeWeakAreas(ctx, db, DefaultPolicy(), 1, t0)
	require.NoError(t, err)
	require.Len(t, areas, 3)
	assert.Equal(t, "Food", areas[0].Category)
	assert.Equal(t, "Home", areas[1].Category)
	assert.Equal(t, "Travel", areas[2].Category)

	stored, err := database.NewWeakAreaRepository(db).ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}
