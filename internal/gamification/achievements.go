package gamification

// Metric names a lifetime number that badge rules compare against
type Metric string

const (
	MetricStreak   Metric = "streak"
	MetricNewItems Metric = "new_items"
	MetricLessons  Metric = "lessons"
	MetricXP       Metric = "xp"
)

// Rule unlocks a badge once Metric reaches Threshold
type Rule struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Icon      string `json:"icon"`
	Metric    Metric `json:"metric"`
	Threshold int    `json:"threshold"`
}

// DefaultRules is the built-in badge catalog
func DefaultRules() []Rule {
	return []Rule{
		{ID: "streak_3", Title: "3 Day Streak", Icon: "🔥", Metric: MetricStreak, Threshold: 3},
		{ID: "streak_7", Title: "Week Warrior", Icon: "🔥", Metric: MetricStreak, Threshold: 7},
		{ID: "streak_30", Title: "Monthly Master", Icon: "🏆", Metric: MetricStreak, Threshold: 30},
		{ID: "words_50", Title: "Word Collector", Icon: "📚", Metric: MetricNewItems, Threshold: 50},
		{ID: "words_100", Title: "Vocabulary Builder", Icon: "📚", Metric: MetricNewItems, Threshold: 100},
		{ID: "words_500", Title: "Lexicon", Icon: "📖", Metric: MetricNewItems, Threshold: 500},
		{ID: "lessons_10", Title: "Dedicated Learner", Icon: "🎓", Metric: MetricLessons, Threshold: 10},
		{ID: "lessons_30", Title: "Scholar", Icon: "🎓", Metric: MetricLessons, Threshold: 30},
		{ID: "xp_500", Title: "Rising Star", Icon: "⭐", Metric: MetricXP, Threshold: 500},
		{ID: "xp_1000", Title: "XP Hunter", Icon: "⭐", Metric: MetricXP, Threshold: 1000},
		{ID: "xp_5000", Title: "Legend", Icon: "👑", Metric: MetricXP, Threshold: 5000},
	}
}

// Snapshot holds every metric value needed for one evaluation
type Snapshot struct {
	Streak   int
	NewItems int
	Lessons  int
	XP       int
}

// Value returns the snapshot value of m
func (s Snapshot) Value(m Metric) int {
	switch m {
	case MetricStreak:
		return s.Streak
	case MetricNewItems:
		return s.NewItems
	case MetricLessons:
		return s.Lessons
	case MetricXP:
		return s.XP
	}
	return 0
}

// Evaluate returns the rules satisfied by snap that are not held yet
func Evaluate(rules []Rule, snap Snapshot, held map[string]bool) []Rule {
	var earned []Rule
	for _, r := range rules {
		if held[r.ID] {
			continue
		}
		if snap.Value(r.Metric) >= r.Threshold {
			earned = append(earned, r)
		}
	}
	return earned
}

// FindRule looks a rule up by badge id
func FindRule(rules []Rule, id string) (Rule, bool) {
	for _, r := range rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}
