package spaced_repetition

import (
	"math"
	"time"
)

// QualityResponse represents the quality of response in SM-2
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

const (
	// MinEaseFactor is the SM-2 floor for the easiness factor
	MinEaseFactor = 1.3
	// InitialEaseFactor is assigned to freshly created cards
	InitialEaseFactor = 2.5
)

// ClampQuality maps any integer grade onto the 0..5 scale
func ClampQuality(grade int) QualityResponse {
	if grade < int(QualityBlackout) {
		return QualityBlackout
	}
	if grade > int(QualityPerfect) {
		return QualityPerfect
	}
	return QualityResponse(grade)
}

// Passed reports whether the grade counts as a successful recall
func (q QualityResponse) Passed() bool {
	return q >= QualityCorrectDifficult
}

// State is the part of a card that SM-2 reads and writes
type State struct {
	Repetitions  int
	IntervalDays int
	EaseFactor   float64
	DueAt        time.Time
}

// Next computes the scheduling state after a review graded at quality.
// It has no side effects: the caller owns persisting the result.
func Next(state State, grade int, now time.Time) State {
	quality := ClampQuality(grade)

	ef := state.EaseFactor
	if ef == 0 {
		ef = InitialEaseFactor
	}

	next := State{
		Repetitions:  state.Repetitions,
		IntervalDays: state.IntervalDays,
	}

	if quality.Passed() {
		switch next.Repetitions {
		case 0:
			next.IntervalDays = 1
		case 1:
			next.IntervalDays = 6
		default:
			// интервал растёт по старому EF
			next.IntervalDays = int(math.RoundToEven(float64(state.IntervalDays) * ef))
		}
		next.Repetitions++
	} else {
		// Ошибка: начинаем заново с завтрашнего дня
		next.Repetitions = 0
		next.IntervalDays = 1
	}

	q := float64(QualityPerfect - quality)
	ef = ef + (0.1 - q*(0.08+q*0.02))
	if ef < MinEaseFactor {
		ef = MinEaseFactor // Не опускаем ниже 1.3
	}
	next.EaseFactor = ef

	if next.IntervalDays < 1 {
		next.IntervalDays = 1
	}
	next.DueAt = now.AddDate(0, 0, next.IntervalDays)

	return next
}

// Phase is the position of a card in the learning state machine
type Phase string

const (
	PhaseNew      Phase = "new"      // no card row yet
	PhaseLearning Phase = "learning" // repetitions == 0
	PhaseYoung    Phase = "young"    // repetitions == 1
	PhaseMature   Phase = "mature"   // repetitions >= 2
)

// PhaseOf classifies a stored card by its repetition count.
// A failed grade always sends a card back to PhaseLearning; there is no terminal phase.
func PhaseOf(repetitions int) Phase {
	switch {
	case repetitions <= 0:
		return PhaseLearning
	case repetitions == 1:
		return PhaseYoung
	default:
		return PhaseMature
	}
}
