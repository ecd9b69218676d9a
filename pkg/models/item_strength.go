package models

import "time"

// ItemStrength tracks how well a user retains a word (0-100)
type ItemStrength struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	WordID    int64     `json:"word_id" db:"word_id"`
	Category  string    `json:"category" db:"category"`
	Strength  int       `json:"strength" db:"strength"`
	LastSeen  time.Time `json:"last_seen" db:"last_seen"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
