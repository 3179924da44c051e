// Package domain holds the activity streak model: day records, the streak calculator and
// the per-user tracker that owns a user's log while their session is open.
package domain

import "errors"

var (
	// ErrUnknownActivityKind is returned for kinds outside task, workout and journal.
	ErrUnknownActivityKind = errors.New("unknown activity kind")
	// ErrInvalidDate is returned for dates that are not ISO YYYY-MM-DD calendar dates.
	ErrInvalidDate = errors.New("invalid date")
	// ErrFutureDate is returned when recording an activity on a day after today.
	ErrFutureDate = errors.New("date is after today")
	// ErrCorruptLog marks a stored log that was read but could not be decoded.
	ErrCorruptLog = errors.New("corrupt activity log")
	// ErrLogUnavailable is returned by mutations when the user's stored log could not be read.
	ErrLogUnavailable = errors.New("activity log unavailable")
)
