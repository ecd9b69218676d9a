package models

import "time"

// WeakArea is a content category flagged for remedial practice
type WeakArea struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	Category  string    `json:"category" db:"category"`
	Count     int       `json:"count" db:"weak_count"` // Weak words in the category
	Urgency   int       `json:"urgency" db:"urgency"`  // 0-100
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
