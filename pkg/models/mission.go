package models

// MissionType selects which ledger counter feeds a mission
type MissionType string

const (
	MissionReview  MissionType = "review"
	MissionLesson  MissionType = "lesson"
	MissionNewItem MissionType = "new_item"
	MissionTime    MissionType = "time"
)

// MissionTemplate is a catalog entry for a daily mission
type MissionTemplate struct {
	ID            int64       `json:"id" db:"id"`
	Title         string      `json:"title" db:"title"`
	MissionType   MissionType `json:"mission_type" db:"mission_type"`
	RequiredCount int         `json:"required_count" db:"required_count"`
	XPReward      int         `json:"xp_reward" db:"xp_reward"`
	IsActive      bool        `json:"is_active" db:"is_active"`
}

// MissionProgress is one assigned mission instance for a user and day
type MissionProgress struct {
	ID              int64       `json:"id" db:"id"`
	UserID          int64       `json:"user_id" db:"user_id"`
	MissionID       int64       `json:"mission_id" db:"mission_id"`
	Day             string      `json:"day" db:"day"`
	CurrentProgress int         `json:"current_progress" db:"current_progress"`
	IsCompleted     bool        `json:"is_completed" db:"is_completed"`
	Title           string      `json:"title" db:"title"`
	MissionType     MissionType `json:"mission_type" db:"mission_type"`
	RequiredCount   int         `json:"required_count" db:"required_count"`
	XPReward        int         `json:"xp_reward" db:"xp_reward"`
}

// Percent returns progress towards the required count (0-100)
func (m MissionProgress) Percent() int {
	if m.RequiredCount <= 0 {
		return 100
	}
	pct := m.CurrentProgress * 100 / m.RequiredCount
	if pct > 100 {
		pct = 100
	}
	return pct
}
