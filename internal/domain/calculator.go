package domain

import "slices"

// Snapshot holds the streak values derived from an ActivityLog.
type Snapshot struct {
	CurrentStreak   int
	LongestStreak   int
	TotalActiveDays int
}

// Calculate derives the streak snapshot of log as of today.
//
// The current streak only counts when the latest record is today or yesterday. Records
// dated after today count toward the longest streak and the total but never start the
// current streak.
func Calculate(log []DayRecord, today Date) Snapshot {
	dates := distinctDates(log)
	if len(dates) == 0 {
		return Snapshot{}
	}

	current := currentStreak(dates, today)
	longest := longestStreak(dates)
	return Snapshot{
		CurrentStreak:   current,
		LongestStreak:   max(longest, current),
		TotalActiveDays: len(dates),
	}
}

// currentStreak expects dates ascending and unique.
func currentStreak(dates []Date, today Date) int {
	i := len(dates) - 1
	for i >= 0 && dates[i].After(today) {
		i--
	}
	if i < 0 || today.DaysSince(dates[i]) > 1 {
		return 0
	}

	streak := 1
	for ; i > 0; i-- {
		if dates[i].DaysSince(dates[i-1]) != 1 {
			break
		}
		streak++
	}
	return streak
}

func longestStreak(dates []Date) int {
	longest, run := 1, 1
	for i := 1; i < len(dates); i++ {
		if dates[i].DaysSince(dates[i-1]) == 1 {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}
	return longest
}

func distinctDates(log []DayRecord) []Date {
	dates := make([]Date, 0, len(log))
	for _, r := range log {
		if !r.Date.IsZero() {
			dates = append(dates, r.Date)
		}
	}
	slices.SortFunc(dates, Date.Compare)
	return slices.CompactFunc(dates, Date.Equal)
}
