package api

import (
	"errors"
	"slices"
	"strings"

	"example.com/streak/internal/domain"
)

// RecordActivityRequest is the payload for POST /v1/streak/activities.
type RecordActivityRequest struct {
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
}

// Validate parses the request. A zero date means today.
func (r RecordActivityRequest) Validate() (domain.ActivityKind, domain.Date, error) {
	if strings.TrimSpace(r.Kind) == "" {
		return "", domain.Date{}, errors.New("kind is required")
	}
	kind, err := domain.ParseActivityKind(r.Kind)
	if err != nil {
		return "", domain.Date{}, err
	}
	if strings.TrimSpace(r.Date) == "" {
		return kind, domain.Date{}, nil
	}
	date, err := domain.ParseDate(strings.TrimSpace(r.Date))
	if err != nil {
		return "", domain.Date{}, err
	}
	return kind, date, nil
}

// SnapshotView is the JSON form of a streak snapshot.
type SnapshotView struct {
	CurrentStreak   int `json:"current_streak"`
	LongestStreak   int `json:"longest_streak"`
	TotalActiveDays int `json:"total_active_days"`
}

// DayView lists the kinds recorded on one date.
type DayView struct {
	Date       string   `json:"date"`
	Activities []string `json:"activities"`
}

// CalendarView lists active days in ascending date order.
type CalendarView struct {
	Days []DayView `json:"days"`
}

func toSnapshotView(s domain.Snapshot) SnapshotView {
	return SnapshotView{
		CurrentStreak:   s.CurrentStreak,
		LongestStreak:   s.LongestStreak,
		TotalActiveDays: s.TotalActiveDays,
	}
}

func toDayView(record domain.DayRecord) DayView {
	return newDayView(record.Date, record.Activities)
}

func newDayView(date domain.Date, kinds []domain.ActivityKind) DayView {
	activities := make([]string, 0, len(kinds))
	for _, k := range kinds {
		activities = append(activities, k.String())
	}
	return DayView{Date: date.String(), Activities: activities}
}

func toCalendarView(calendar map[domain.Date][]domain.ActivityKind) CalendarView {
	dates := make([]domain.Date, 0, len(calendar))
	for d := range calendar {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, domain.Date.Compare)

	view := CalendarView{Days: make([]DayView, 0, len(dates))}
	for _, d := range dates {
		view.Days = append(view.Days, newDayView(d, calendar[d]))
	}
	return view
}
