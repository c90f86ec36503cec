package audit

import (
	"fmt"
	"strings"
)

// Boundary selects whether a key aged exactly ErrorDays counts as expired.
type Boundary string

const (
	// BoundaryInclusive treats age >= ErrorDays as expired.
	BoundaryInclusive Boundary = "inclusive"
	// BoundaryExclusive treats age > ErrorDays as expired.
	BoundaryExclusive Boundary = "exclusive"
)

// DefaultReminderPeriodDays is the number of days between repeated reminders.
const DefaultReminderPeriodDays = 8

// ParseBoundary parses a boundary name; the empty string selects BoundaryInclusive.
func ParseBoundary(s string) (Boundary, error) {
	switch Boundary(strings.ToLower(strings.TrimSpace(s))) {
	case "", BoundaryInclusive:
		return BoundaryInclusive, nil
	case BoundaryExclusive:
		return BoundaryExclusive, nil
	default:
		return "", fmt.Errorf("unknown expiry boundary %q", s)
	}
}

// Thresholds is the age policy applied to every key of a run.
type Thresholds struct {
	WarnDays           int
	ErrorDays          int
	ReminderPeriodDays int
	Boundary           Boundary
}

// Validate checks that the thresholds describe a usable policy.
func (t Thresholds) Validate() error {
	if t.WarnDays < 0 {
		return fmt.Errorf("warn days must not be negative, got %d", t.WarnDays)
	}
	if t.ErrorDays < 0 {
		return fmt.Errorf("error days must not be negative, got %d", t.ErrorDays)
	}
	if t.WarnDays > t.ErrorDays {
		return fmt.Errorf("warn days (%d) must not exceed error days (%d)", t.WarnDays, t.ErrorDays)
	}
	if t.ReminderPeriodDays <= 0 {
		return fmt.Errorf("reminder period must be positive, got %d", t.ReminderPeriodDays)
	}
	if _, err := ParseBoundary(string(t.Boundary)); err != nil {
		return err
	}
	return nil
}

// FirstExpiredDay is the smallest age at which an active key counts as expired.
func (t Thresholds) FirstExpiredDay() int {
	if t.Boundary == BoundaryExclusive {
		return t.ErrorDays + 1
	}
	return t.ErrorDays
}
