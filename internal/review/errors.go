package review

import "errors"

var (
	// ErrCardNotFound is returned when a graded card does not exist
	ErrCardNotFound = errors.New("review: card not found")
	// ErrForbidden is returned when a card belongs to another user
	ErrForbidden = errors.New("review: card belongs to another user")
	// ErrWordNotFound is returned when a saved word is not in the catalog
	ErrWordNotFound = errors.New("review: word not found")
	// ErrNoHearts is returned when a heart is spent on an empty bar
	ErrNoHearts = errors.New("review: no hearts left")
	// ErrInvalidTimezone is returned for names unknown to the tz database
	ErrInvalidTimezone = errors.New("review: invalid timezone")
	// ErrInvalidHour is returned for reminder hours outside 0..23
	ErrInvalidHour = errors.New("review: reminder hour must be between 0 and 23")
)
