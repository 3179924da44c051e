package domain

import (
	"slices"
)

// DayRecord aggregates the activity kinds performed on one calendar day.
type DayRecord struct {
	Date       Date
	Activities []ActivityKind // set, canonical order
}

// Has reports whether kind was recorded on the day.
func (r DayRecord) Has(kind ActivityKind) bool {
	return slices.Contains(r.Activities, kind)
}

// with returns a copy of r with kind added to its activity set.
func (r DayRecord) with(kind ActivityKind) DayRecord {
	if r.Has(kind) {
		return r
	}
	activities := append(slices.Clone(r.Activities), kind)
	slices.SortFunc(activities, func(a, b ActivityKind) int { return a.rank() - b.rank() })
	return DayRecord{Date: r.Date, Activities: activities}
}

// ActivityLog is a user's day records, ascending by date with at most one record per date.
type ActivityLog []DayRecord

// Record adds kind to the record for date, creating the record when the date is new.
// The receiver is not modified.
func (l ActivityLog) Record(kind ActivityKind, date Date) ActivityLog {
	idx, found := l.search(date)
	out := slices.Clone(l)
	if found {
		out[idx] = out[idx].with(kind)
		return out
	}
	return slices.Insert(out, idx, DayRecord{Date: date, Activities: []ActivityKind{kind}})
}

// Day returns the record for date.
func (l ActivityLog) Day(date Date) (DayRecord, bool) {
	idx, found := l.search(date)
	if !found {
		return DayRecord{}, false
	}
	return l[idx], true
}

// Dates returns the record dates in ascending order.
func (l ActivityLog) Dates() []Date {
	dates := make([]Date, len(l))
	for i, r := range l {
		dates[i] = r.Date
	}
	return dates
}

func (l ActivityLog) search(date Date) (int, bool) {
	return slices.BinarySearchFunc(l, date, func(r DayRecord, d Date) int { return r.Date.Compare(d) })
}

// NewActivityLog builds a well-formed log from arbitrary records: sorted ascending,
// duplicate dates merged, records without activities or with a zero date dropped.
func NewActivityLog(records []DayRecord) ActivityLog {
	sorted := make([]DayRecord, 0, len(records))
	for _, r := range records {
		if !r.Date.IsZero() {
			sorted = append(sorted, r)
		}
	}
	slices.SortStableFunc(sorted, func(a, b DayRecord) int { return a.Date.Compare(b.Date) })

	var log ActivityLog
	for _, r := range sorted {
		var kinds []ActivityKind
		if n := len(log); n > 0 && log[n-1].Date.Equal(r.Date) {
			kinds = log[n-1].Activities
		}
		for _, kind := range r.Activities {
			if kind.Valid() && !slices.Contains(kinds, kind) {
				kinds = append(kinds, kind)
			}
		}
		if len(kinds) == 0 {
			continue
		}
		slices.SortFunc(kinds, func(a, b ActivityKind) int { return a.rank() - b.rank() })
		if n := len(log); n > 0 && log[n-1].Date.Equal(r.Date) {
			log[n-1].Activities = kinds
			continue
		}
		log = append(log, DayRecord{Date: r.Date, Activities: kinds})
	}
	return log
}
