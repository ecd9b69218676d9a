// Package gamification keeps the daily-progress ledger and everything that
// hangs off it: XP and levels, streaks, daily missions, badges and weak areas.
package gamification

import "github.com/example/lughat/pkg/models"

// XPPolicy is the XP granted per unit of each activity counter
type XPPolicy struct {
	Review  int
	NewItem int
	Lesson  int
	Minute  int
}

// Policy bundles every tunable number of the ledger
type Policy struct {
	XP   XPPolicy
	Goal models.DailyGoal

	// Minutes credited for one graded review and one completed lesson
	MinutesPerReview int
	MinutesPerLesson int

	// XP needed to leave level n is LevelStep*n
	LevelStep int

	// Words below this strength count as weak
	WeakThreshold int
	// Number of weak categories kept in the snapshot
	WeakAreaLimit int

	MissionsPerDay int
}

// DefaultPolicy returns the production defaults
func DefaultPolicy() Policy {
	return Policy{
		XP: XPPolicy{
			Review:  1,
			NewItem: 2,
			Lesson:  10,
			Minute:  0,
		},
		Goal: models.DailyGoal{
			Reviews:  10,
			Lessons:  1,
			NewItems: 5,
			Minutes:  15,
		},
		MinutesPerReview: 1,
		MinutesPerLesson: 5,
		LevelStep:        100,
		WeakThreshold:    40,
		WeakAreaLimit:    3,
		MissionsPerDay:   3,
	}
}

// XPFor returns the XP earned by a ledger delta
func (p Policy) XPFor(d Delta) int {
	return d.Reviews*p.XP.Review +
		d.NewItems*p.XP.NewItem +
		d.Lessons*p.XP.Lesson +
		d.Minutes*p.XP.Minute
}

// XPForNextLevel returns the XP total at which level is left
func (p Policy) XPForNextLevel(level int) int {
	if level < 1 {
		level = 1
	}
	return p.LevelStep * level
}

// LevelFor applies the leveling loop starting from level
func (p Policy) LevelFor(level, xpTotal int) int {
	if level < 1 {
		level = 1
	}
	if p.LevelStep <= 0 {
		return level
	}
	for xpTotal >= p.XPForNextLevel(level) {
		level++
	}
	return level
}

// LevelProgress describes how far the user is into the current level
type LevelProgress struct {
	XP             int `json:"xp"`
	Level          int `json:"level"`
	NextLevelXP    int `json:"next_level_xp"`
	Percent        int `json:"xp_pct"`
	LevelXPCurrent int `json:"level_xp_current"`
	LevelXPMax     int `json:"level_xp_max"`
}

// Progress computes the live level bar for a profile
func (p Policy) Progress(level, xpTotal int) LevelProgress {
	prev := 0
	if level > 1 {
		prev = p.XPForNextLevel(level - 1)
	}
	next := p.XPForNextLevel(level)

	gained := xpTotal - prev
	if gained < 0 {
		gained = 0
	}
	width := next - prev
	if width < 1 {
		width = 1
	}
	pct := gained * 100 / width
	if pct > 100 {
		pct = 100
	}

	return LevelProgress{
		XP:             xpTotal,
		Level:          level,
		NextLevelXP:    next,
		Percent:        pct,
		LevelXPCurrent: gained,
		LevelXPMax:     width,
	}
}
