// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/json"
	"fmt"

	"example.com/streak/internal/domain"
)

// storedDay is the storage shape of a DayRecord.
type storedDay struct {
	Date       string   `json:"date"`
	Activities []string `json:"activities"`
}

// EncodeLog serialises a log to its JSON storage format.
func EncodeLog(log domain.ActivityLog) ([]byte, error) {
	days := make([]storedDay, 0, len(log))
	for _, r := range log {
		if r.Date.IsZero() {
			return nil, fmt.Errorf("encode log: %w", domain.ErrInvalidDate)
		}
		activities := make([]string, 0, len(r.Activities))
		for _, kind := range r.Activities {
			activities = append(activities, string(kind))
		}
		days = append(days, storedDay{Date: r.Date.String(), Activities: activities})
	}
	return json.Marshal(days)
}

// DecodeLog parses the JSON storage format. Every date and kind is validated; the result is
// sorted with duplicate dates merged. Errors wrap domain.ErrCorruptLog.
func DecodeLog(data []byte) (domain.ActivityLog, error) {
	var days []storedDay
	if err := json.Unmarshal(data, &days); err != nil {
		return nil, fmt.Errorf("decode log: %w: %w", domain.ErrCorruptLog, err)
	}

	records := make([]domain.DayRecord, 0, len(days))
	for _, day := range days {
		date, err := domain.ParseDate(day.Date)
		if err != nil {
			return nil, fmt.Errorf("decode log: %w: %w", domain.ErrCorruptLog, err)
		}
		record := domain.DayRecord{Date: date}
		for _, raw := range day.Activities {
			kind, err := domain.ParseActivityKind(raw)
			if err != nil {
				return nil, fmt.Errorf("decode log %s: %w: %w", day.Date, domain.ErrCorruptLog, err)
			}
			record.Activities = append(record.Activities, kind)
		}
		records = append(records, record)
	}
	return domain.NewActivityLog(records), nil
}
