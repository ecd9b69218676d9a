package models

// DailyGoal holds the thresholds that make a day count towards the streak.
// Meeting any one of them is enough.
type DailyGoal struct {
	Reviews  int `json:"reviews" koanf:"reviews" validate:"gte=1"`
	Lessons  int `json:"lessons" koanf:"lessons" validate:"gte=1"`
	NewItems int `json:"new_items" koanf:"newitems" validate:"gte=1"`
	Minutes  int `json:"minutes" koanf:"minutes" validate:"gte=1"`
}

// Met reports whether the day's counters satisfy the goal
func (g DailyGoal) Met(s DailyStat) bool {
	return s.Reviews >= g.Reviews ||
		s.Lessons >= g.Lessons ||
		s.NewItems >= g.NewItems ||
		s.Minutes >= g.Minutes
}
