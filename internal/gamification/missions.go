package gamification

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/example/lughat/internal/database"
	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
)

// MissionTracker assigns daily missions and advances them from ledger deltas
type MissionTracker struct {
	perDay int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMissionTracker creates a tracker drawing perDay missions with rnd.
// A nil rnd is seeded from the clock.
func NewMissionTracker(perDay int, rnd *rand.Rand) *MissionTracker {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MissionTracker{perDay: perDay, rnd: rnd}
}

// pick draws up to n templates without replacement, skipping assigned ones
func (t *MissionTracker) pick(templates []models.MissionTemplate, assigned map[int64]bool, n int) []models.MissionTemplate {
	pool := make([]models.MissionTemplate, 0, len(templates))
	for _, tpl := range templates {
		if !assigned[tpl.ID] {
			pool = append(pool, tpl)
		}
	}

	t.mu.Lock()
	t.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	t.mu.Unlock()

	if n < 0 {
		n = 0
	}
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}

// Assign tops the user's day up to the daily quota and returns the day's missions
func (t *MissionTracker) Assign(ctx context.Context, q sqlx.ExtContext, userID int64, day string, now time.Time) ([]models.MissionProgress, error) {
	repo := database.NewMissionRepository(q)

	current, err := repo.ListForDay(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	missing := t.perDay - len(current)
	if missing <= 0 {
		return current, nil
	}

	templates, err := repo.ListActiveTemplates(ctx)
	if err != nil {
		return nil, err
	}
	assigned := make(map[int64]bool, len(current))
	for _, m := range current {
		assigned[m.MissionID] = true
	}

	picked := t.pick(templates, assigned, missing)
	if len(picked) == 0 {
		return current, nil
	}
	for _, tpl := range picked {
		if _, err := repo.Assign(ctx, userID, tpl.ID, day, now); err != nil {
			return nil, fmt.Errorf("failed to assign mission %q: %w", tpl.Title, err)
		}
	}
	return repo.ListForDay(ctx, userID, day)
}

// amountFor returns the part of delta that feeds a mission of type mt
func amountFor(mt models.MissionType, d Delta) int {
	switch mt {
	case models.MissionReview:
		return d.Reviews
	case models.MissionLesson:
		return d.Lessons
	case models.MissionNewItem:
		return d.NewItems
	case models.MissionTime:
		return d.Minutes
	}
	return 0
}

// advance returns the capped progress of m after d and whether it is now done
func advance(m models.MissionProgress, d Delta) (int, bool) {
	progress := m.CurrentProgress + amountFor(m.MissionType, d)
	if progress > m.RequiredCount {
		progress = m.RequiredCount
	}
	return progress, progress >= m.RequiredCount
}

// Apply adds d to every open mission of the day. Missions that reach their
// target are completed exactly once; the returned XP is the sum of rewards
// for the completions made by this call.
func (t *MissionTracker) Apply(ctx context.Context, q sqlx.ExtContext, userID int64, day string, d Delta, now time.Time) ([]models.MissionProgress, int, error) {
	repo := database.NewMissionRepository(q)

	open, err := repo.ListOpenForDay(ctx, userID, day)
	if err != nil {
		return nil, 0, err
	}

	var completed []models.MissionProgress
	xp := 0
	for _, m := range open {
		progress, done := advance(m, d)
		if progress == m.CurrentProgress && !done {
			continue
		}
		if err := repo.SetProgress(ctx, m.ID, progress, now); err != nil {
			return nil, 0, err
		}
		if !done {
			continue
		}

		ok, err := repo.Complete(ctx, m.ID, now)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			m.CurrentProgress = progress
			m.IsCompleted = true
			completed = append(completed, m)
			xp += m.XPReward
		}
	}
	return completed, xp, nil
}
