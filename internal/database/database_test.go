package database

import (
	"context"
	"testing"
	"time"

	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(DriverSQLite3, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCardGetOrCreateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewCardRepository(db)

	card, created, err := repo.GetOrCreate(ctx, 1, models.WordTarget(42), t0)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 0, card.Repetitions)
	assert.Equal(t, 0, card.IntervalDays)
	assert.InDelta(t, 2.5, card.EaseFactor, 1e-9)
	assert.True(t, card.DueAt.Equal(t0))

	again, created, err := repo.GetOrCreate(ctx, 1, models.WordTarget(42), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, card.ID, again.ID)

	// same id, other kind is a different card
	letter, created, err := repo.GetOrCreate(ctx, 1, models.LetterTarget(42), t0)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, card.ID, letter.ID)
	id, ok := letter.Target.LetterID()
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)
}

func TestCardGetOrCreateRejectsZeroTarget(t *testing.T) {
	db := openTestDB(t)
	_, _, err := NewCardRepository(db).GetOrCreate(context.Background(), 1, models.CardTarget{}, t0)
	assert.Error(t, err)
}

func TestCardGetDueOrderAndLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewCardRepository(db)

	for i, offset := range []int{3, -2, -5, -1} {
		card, _, err := repo.GetOrCreate(ctx, 7, models.WordTarget(int64(i+1)), t0)
		require.NoError(t, err)
		card.DueAt = t0.AddDate(0, 0, offset)
		require.NoError(t, repo.UpdateSchedule(ctx, card, t0))
	}
	// someone else's overdue card
	_, _, err := repo.GetOrCreate(ctx, 8, models.WordTarget(1), t0.AddDate(0, 0, -10))
	require.NoError(t, err)

	due, err := repo.GetDue(ctx, 7, t0, 20)
	require.NoError(t, err)
	require.Len(t, due, 3)
	for i := 1; i < len(due); i++ {
		assert.False(t, due[i].DueAt.Before(due[i-1].DueAt))
	}
	w, _ := due[0].Target.WordID()
	assert.EqualValues(t, 3, w)

	limited, err := repo.GetDue(ctx, 7, t0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	count, err := repo.CountDue(ctx, 7, t0)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCardCreateMissingKeepsSchedule(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewCardRepository(db)

	card, _, err := repo.GetOrCreate(ctx, 1, models.WordTarget(2), t0)
	require.NoError(t, err)
	card.Repetitions = 3
	card.IntervalDays = 15
	card.DueAt = t0.AddDate(0, 0, 15)
	require.NoError(t, repo.UpdateSchedule(ctx, card, t0))

	created, err := repo.CreateMissing(ctx, 1, []models.CardTarget{
		models.WordTarget(1), models.WordTarget(2), models.WordTarget(3),
	}, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	kept, err := repo.GetByTarget(ctx, 1, models.WordTarget(2))
	require.NoError(t, err)
	assert.Equal(t, 3, kept.Repetitions)
	assert.Equal(t, 15, kept.IntervalDays)

	total, err := repo.CountByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestCardUpdateScheduleChecksOwner(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewCardRepository(db)

	card, _, err := repo.GetOrCreate(ctx, 1, models.WordTarget(2), t0)
	require.NoError(t, err)
	card.UserID = 99
	assert.ErrorIs(t, repo.UpdateSchedule(ctx, card, t0), ErrNotFound)

	_, err = repo.GetByID(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDailyStatIncrementAndActiveDays(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewDailyStatRepository(db)

	stat, err := repo.GetOrCreate(ctx, 1, "2026-03-08")
	require.NoError(t, err)
	assert.Equal(t, 0, stat.Reviews)

	require.NoError(t, repo.Increment(ctx, 1, "2026-03-08", StatDelta{Reviews: 4, Minutes: 4, XP: 4}))
	require.NoError(t, repo.Increment(ctx, 1, "2026-03-08", StatDelta{Reviews: 6, Minutes: 6, XP: 6}))
	require.NoError(t, repo.Increment(ctx, 1, "2026-03-09", StatDelta{Minutes: 14}))
	require.NoError(t, repo.Increment(ctx, 1, "2026-03-10", StatDelta{Lessons: 1, NewItems: 2}))
	require.NoError(t, repo.Increment(ctx, 2, "2026-03-09", StatDelta{Lessons: 1}))

	stat, err = repo.Get(ctx, 1, "2026-03-08")
	require.NoError(t, err)
	assert.Equal(t, 10, stat.Reviews)
	assert.Equal(t, 10, stat.XPEarned)

	goal := models.DailyGoal{Reviews: 10, Lessons: 1, NewItems: 5, Minutes: 15}
	days, err := repo.ActiveDays(ctx, 1, goal)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-08", "2026-03-10"}, days)

	newItems, lessons, err := repo.Totals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, newItems)
	assert.Equal(t, 1, lessons)

	_, err = repo.Get(ctx, 1, "2026-01-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileMonotonicFields(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewProfileRepository(db)

	p, err := repo.GetOrCreate(ctx, 1, "Asia/Tashkent", t0)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, models.MaxHearts, p.Hearts)
	assert.Equal(t, "Asia/Tashkent", p.Timezone)

	total, err := repo.AddXP(ctx, 1, 150, t0)
	require.NoError(t, err)
	assert.Equal(t, 150, total)

	raised, err := repo.RaiseLevel(ctx, 1, 2, t0)
	require.NoError(t, err)
	assert.True(t, raised)
	raised, err = repo.RaiseLevel(ctx, 1, 1, t0)
	require.NoError(t, err)
	assert.False(t, raised)

	require.NoError(t, repo.UpdateStreaks(ctx, 1, 5, 5, t0))
	require.NoError(t, repo.UpdateStreaks(ctx, 1, 1, 1, t0))

	p, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 5, p.LongestStreak)
}

func TestProfileHearts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewProfileRepository(db)
	_, err := repo.GetOrCreate(ctx, 1, "", t0)
	require.NoError(t, err)

	for i := 0; i < models.MaxHearts; i++ {
		ok, err := repo.SpendHeart(ctx, 1, t0)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := repo.SpendHeart(ctx, 1, t0)
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < models.MaxHearts+3; i++ {
		require.NoError(t, repo.RestoreHeart(ctx, 1, t0))
	}
	p, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.MaxHearts, p.Hearts)
	assert.Equal(t, "UTC", p.Timezone)
}

func TestProfileReminderCandidates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewProfileRepository(db)
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, repo.Ensure(ctx, id, "UTC", t0))
	}
	require.NoError(t, repo.UpdateReminder(ctx, 2, true, 20, t0))

	profiles, err := repo.ListReminderCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.EqualValues(t, 2, profiles[0].UserID)
	assert.Equal(t, 20, profiles[0].ReminderHour)
}

func TestItemStrengthAdjustClamps(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewItemStrengthRepository(db)

	created, err := repo.Ensure(ctx, 1, 5, "", t0)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Ensure(ctx, 1, 5, "Food", t0)
	require.NoError(t, err)
	assert.False(t, created)

	before, after, err := repo.Adjust(ctx, 1, 5, -5, t0)
	require.NoError(t, err)
	assert.Equal(t, 0, before)
	assert.Equal(t, 0, after)

	for i := 0; i < 12; i++ {
		_, after, err = repo.Adjust(ctx, 1, 5, 10, t0)
		require.NoError(t, err)
	}
	assert.Equal(t, 100, after)

	s, err := repo.Get(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, s.Category)

	_, _, err = repo.Adjust(ctx, 1, 6, 10, t0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWeakCountsByCategory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewItemStrengthRepository(db)

	words := map[int64]string{1: "Food", 2: "Food", 3: "Travel", 4: "Animals", 5: "Animals"}
	for id, cat := range words {
		_, err := repo.Ensure(ctx, 1, id, cat, t0)
		require.NoError(t, err)
	}
	_, _, err := repo.Adjust(ctx, 1, 5, 50, t0)
	require.NoError(t, err)

	counts, err := repo.WeakCountsByCategory(ctx, 1, 40)
	require.NoError(t, err)
	assert.Equal(t, []CategoryCount{
		{Category: "Food", Count: 2},
		{Category: "Animals", Count: 1},
		{Category: "Travel", Count: 1},
	}, counts)
}

func TestBadgeAwardOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewBadgeRepository(db)

	ok, err := repo.Award(ctx, 1, "streak_3", t0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Award(ctx, 1, "streak_3", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	badges, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.True(t, badges[0].EarnedAt.Equal(t0))

	ids, err := repo.IDs(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ids["streak_3"])
}

func TestMissionCompleteOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewMissionRepository(db)

	tpl := &models.MissionTemplate{Title: "Review 5", MissionType: models.MissionReview, RequiredCount: 5, XPReward: 20, IsActive: true}
	created, err := repo.UpsertTemplate(ctx, tpl)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotZero(t, tpl.ID)

	tpl.XPReward = 25
	created, err = repo.UpsertTemplate(ctx, tpl)
	require.NoError(t, err)
	assert.False(t, created)

	ok, err := repo.Assign(ctx, 1, tpl.ID, "2026-03-10", t0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Assign(ctx, 1, tpl.ID, "2026-03-10", t0)
	require.NoError(t, err)
	assert.False(t, ok)

	open, err := repo.ListOpenForDay(ctx, 1, "2026-03-10")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 25, open[0].XPReward)
	assert.Equal(t, "Review 5", open[0].Title)

	require.NoError(t, repo.SetProgress(ctx, open[0].ID, 5, t0))
	done, err := repo.Complete(ctx, open[0].ID, t0)
	require.NoError(t, err)
	assert.True(t, done)
	done, err = repo.Complete(ctx, open[0].ID, t0)
	require.NoError(t, err)
	assert.False(t, done)

	open, err = repo.ListOpenForDay(ctx, 1, "2026-03-10")
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := repo.ListForDay(ctx, 1, "2026-03-10")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsCompleted)
	assert.Equal(t, 100, all[0].Percent())
}

func TestWeakAreaReplace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewWeakAreaRepository(db)

	require.NoError(t, repo.Replace(ctx, 1, []models.WeakArea{{Category: "Food", Count: 2, Urgency: 40}}, t0))
	require.NoError(t, repo.Replace(ctx, 1, []models.WeakArea{{Category: "Travel", Count: 1, Urgency: 20}}, t0))

	areas, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, areas, 1)
	assert.Equal(t, "Travel", areas[0].Category)
}

func TestGradeEventRecord(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewGradeEventRepository(db)

	ok, err := repo.Record(ctx, 1, "k1", 10, 5, t0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Record(ctx, 1, "k1", 10, 5, t0)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.Record(ctx, 2, "k1", 11, 5, t0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestContentRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.MustExec(`INSERT INTO words (id, text, category) VALUES (1, 'kitob', 'Books'), (2, 'suv', NULL)`)
	db.MustExec(`INSERT INTO lesson_words (lesson_id, word_id, position) VALUES (7, 2, 0), (7, 1, 1)`)
	db.MustExec(`INSERT INTO letters (id, symbol, ord) VALUES (1, 'b', 2), (2, 'a', 1)`)

	repo := NewContentRepository(db)
	words, err := repo.LessonWords(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, words)

	cat, err := repo.WordCategory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Books", cat)
	cat, err = repo.WordCategory(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, cat)
	_, err = repo.WordCategory(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	letters, err := repo.Letters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, letters)

	text, err := repo.CardText(ctx, models.WordTarget(1))
	require.NoError(t, err)
	assert.Equal(t, "kitob", text)
	text, err = repo.CardText(ctx, models.LetterTarget(2))
	require.NoError(t, err)
	assert.Equal(t, "a", text)
	_, err = repo.CardText(ctx, models.LetterTarget(9))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, _, err := NewCardRepository(tx).GetOrCreate(ctx, 1, models.WordTarget(1), t0); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	count, err := NewCardRepository(db).CountByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSqliteDir(t *testing.T) {
	assert.Equal(t, "", sqliteDir(":memory:"))
	assert.Equal(t, "", sqliteDir("file::memory:?cache=shared"))
	assert.Equal(t, "data", sqliteDir("data/lughat.db"))
	assert.Equal(t, "/var/lib/lughat", sqliteDir("file:/var/lib/lughat/app.db?_busy_timeout=5000"))
}
