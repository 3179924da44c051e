package domain

import (
	"fmt"
	"strings"
)

// ActivityKind is the category of user action that counts toward a day's activity.
type ActivityKind string

const (
	ActivityTask    ActivityKind = "task"
	ActivityWorkout ActivityKind = "workout"
	ActivityJournal ActivityKind = "journal"
)

// ActivityKinds lists every kind in canonical order.
var ActivityKinds = []ActivityKind{ActivityTask, ActivityWorkout, ActivityJournal}

// ParseActivityKind validates raw input against the closed set of kinds.
func ParseActivityKind(raw string) (ActivityKind, error) {
	kind := ActivityKind(strings.ToLower(strings.TrimSpace(raw)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownActivityKind, raw)
	}
	return kind, nil
}

// Valid reports whether k is one of the known kinds.
func (k ActivityKind) Valid() bool {
	return k.rank() >= 0
}

func (k ActivityKind) rank() int {
	for i, known := range ActivityKinds {
		if k == known {
			return i
		}
	}
	return -1
}

func (k ActivityKind) String() string { return string(k) }
