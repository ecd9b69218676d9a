package gamification

import (
	"sort"
	"time"
	_ "time/tzdata"
)

// DayLayout is the format of a local calendar day
const DayLayout = "2006-01-02"

// LocalDay returns the calendar day of now in the named IANA zone.
// Unknown zones fall back to UTC.
func LocalDay(timezone string, now time.Time) string {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = time.UTC
	}
	return now.In(loc).Format(DayLayout)
}

func parseDay(day string) (time.Time, bool) {
	t, err := time.Parse(DayLayout, day)
	return t, err == nil
}

func addDays(day string, n int) string {
	t, ok := parseDay(day)
	if !ok {
		return ""
	}
	return t.AddDate(0, 0, n).Format(DayLayout)
}

// CurrentStreak counts consecutive active days ending today. An unfinished
// today does not break the streak: counting then starts from yesterday.
func CurrentStreak(activeDays []string, today string) int {
	active := make(map[string]bool, len(activeDays))
	for _, d := range activeDays {
		active[d] = true
	}

	cursor := today
	if !active[cursor] {
		cursor = addDays(today, -1)
	}

	streak := 0
	for cursor != "" && active[cursor] {
		streak++
		cursor = addDays(cursor, -1)
	}
	return streak
}

// LongestStreak returns the longest run of consecutive days
func LongestStreak(activeDays []string) int {
	days := make([]time.Time, 0, len(activeDays))
	for _, d := range activeDays {
		if t, ok := parseDay(d); ok {
			days = append(days, t)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 0, 0
	for i, d := range days {
		switch {
		case i > 0 && d.Equal(days[i-1]):
			continue // дубликат
		case i > 0 && d.Equal(days[i-1].AddDate(0, 0, 1)):
			run++
		default:
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
