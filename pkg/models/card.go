package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TargetKind names the kind of content a card schedules
type TargetKind string

const (
	TargetWord   TargetKind = "word"
	TargetLetter TargetKind = "letter"
)

// CardTarget is exactly one of Word(id) or Letter(id).
// The zero value is invalid; build targets with WordTarget or LetterTarget.
type CardTarget struct {
	kind TargetKind
	id   int64
}

// WordTarget returns a target pointing at a dictionary word
func WordTarget(wordID int64) CardTarget {
	return CardTarget{kind: TargetWord, id: wordID}
}

// LetterTarget returns a target pointing at an alphabet letter
func LetterTarget(letterID int64) CardTarget {
	return CardTarget{kind: TargetLetter, id: letterID}
}

// ParseCardTarget rebuilds a target from its stored kind and id
func ParseCardTarget(kind string, id int64) (CardTarget, error) {
	switch TargetKind(kind) {
	case TargetWord:
		return WordTarget(id), nil
	case TargetLetter:
		return LetterTarget(id), nil
	}
	return CardTarget{}, fmt.Errorf("unknown card target kind %q", kind)
}

// Kind returns the target kind
func (t CardTarget) Kind() TargetKind { return t.kind }

// ID returns the id of the word or letter
func (t CardTarget) ID() int64 { return t.id }

// WordID returns the word id when the target is a word
func (t CardTarget) WordID() (int64, bool) {
	return t.id, t.kind == TargetWord
}

// LetterID returns the letter id when the target is a letter
func (t CardTarget) LetterID() (int64, bool) {
	return t.id, t.kind == TargetLetter
}

// IsZero reports whether the target was never set
func (t CardTarget) IsZero() bool { return t.kind == "" }

func (t CardTarget) String() string {
	return fmt.Sprintf("%s:%d", t.kind, t.id)
}

// MarshalJSON encodes the target as {"kind": ..., "id": ...}
func (t CardTarget) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind TargetKind `json:"kind"`
		ID   int64      `json:"id"`
	}{t.kind, t.id})
}

// Card holds the SM-2 scheduling state of one item for one user
type Card struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	Target       CardTarget `json:"target"`
	Repetitions  int        `json:"repetitions"`   // Successful reviews in a row
	IntervalDays int        `json:"interval_days"` // Current interval in days
	EaseFactor   float64    `json:"ease_factor"`   // SM-2 EF parameter, never below 1.3
	DueAt        time.Time  `json:"due_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
