package models

import "time"

// MaxHearts is the size of a full heart bar
const MaxHearts = 5

// GamificationProfile is the per-user cumulative progress record
type GamificationProfile struct {
	UserID          int64     `json:"user_id" db:"user_id"`
	XPTotal         int       `json:"xp_total" db:"xp_total"`
	Level           int       `json:"level" db:"level"`
	CurrentStreak   int       `json:"current_streak" db:"current_streak"`
	LongestStreak   int       `json:"longest_streak" db:"longest_streak"`
	Hearts          int       `json:"hearts" db:"hearts"`
	Timezone        string    `json:"timezone" db:"timezone"` // IANA name used for the local calendar day
	ReminderEnabled bool      `json:"reminder_enabled" db:"reminder_enabled"`
	ReminderHour    int       `json:"reminder_hour" db:"reminder_hour"` // Local hour of day (0-23)
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Badge is an achievement the user has earned. Badges are never revoked.
type Badge struct {
	UserID   int64     `json:"user_id" db:"user_id"`
	BadgeID  string    `json:"badge_id" db:"badge_id"`
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
}
