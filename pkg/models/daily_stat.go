package models

// DailyStat holds a user's activity counters for one local calendar day
type DailyStat struct {
	ID       int64  `json:"id" db:"id"`
	UserID   int64  `json:"user_id" db:"user_id"`
	Day      string `json:"day" db:"day"` // YYYY-MM-DD in the user's time zone
	Minutes  int    `json:"minutes" db:"minutes"`
	Reviews  int    `json:"reviews" db:"reviews"`
	NewItems int    `json:"new_items" db:"new_items"`
	Lessons  int    `json:"lessons" db:"lessons"`
	XPEarned int    `json:"xp_earned" db:"xp_earned"`
}
