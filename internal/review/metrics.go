package review

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// gradesTotal counts grading submissions by result (passed, failed, duplicate)
	gradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lughat_grades_total",
		Help: "Total graded reviews by result",
	}, []string{"result"})

	// lessonsTotal counts completed lessons
	lessonsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lughat_lessons_completed_total",
		Help: "Total completed lessons",
	})

	// itemsSavedTotal counts newly saved vocabulary items
	itemsSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lughat_items_saved_total",
		Help: "Total vocabulary items saved for the first time",
	})

	// missionsCompletedTotal counts missions completed by ledger increments
	missionsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lughat_missions_completed_total",
		Help: "Total daily missions completed",
	})

	// badgesAwardedTotal counts badges by id
	badgesAwardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lughat_badges_awarded_total",
		Help: "Total badges awarded by badge id",
	}, []string{"badge"})

	// eventDuration tracks end-to-end event processing latency
	eventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lughat_event_duration_seconds",
		Help:    "Progress event processing duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"event"})
)
