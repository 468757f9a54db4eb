package service

import (
	"fmt"
	"time"

	appErrors "github.com/roadready/driveschool-api/pkg/errors"

	"github.com/roadready/driveschool-api/internal/models"
)

// Business rules for lesson windows. Windows are half-open [start, end)
// minute intervals within a single day.
const (
	dayOpenMinute    = 8 * 60  // 08:00
	dayCloseMinute   = 18 * 60 // 18:00
	minLessonMinutes = 30
	maxLessonMinutes = 180
	maxAdvanceDays   = 90
)

// Window is a half-open interval expressed in minutes since midnight.
type Window struct {
	Start int
	End   int
}

// ParseClock converts a zero-padded "HH:MM" string into minutes since
// midnight.
func ParseClock(raw string) (int, error) {
	if len(raw) != len("15:04") {
		return 0, fmt.Errorf("parse clock %q: want zero-padded HH:MM", raw)
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", raw, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseWindow builds a Window from "HH:MM" bounds.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e}, nil
}

// StartClock returns the window start as "HH:MM".
func (w Window) StartClock() string { return FormatClock(w.Start) }

// EndClock returns the window end as "HH:MM".
func (w Window) EndClock() string { return FormatClock(w.End) }

// Duration returns the window length in minutes.
func (w Window) Duration() int { return w.End - w.Start }

// Overlaps reports whether two half-open windows intersect. Touching
// windows (one ends exactly when the other starts) do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && other.Start < w.End
}

// OverlapsAny scans a resource's occupied intervals for a collision with w,
// skipping the interval owned by excludeLessonID so a lesson never conflicts
// with itself during reschedule.
func OverlapsAny(intervals []models.ResourceInterval, w Window, excludeLessonID string) bool {
	for _, interval := range intervals {
		if excludeLessonID != "" && interval.LessonID == excludeLessonID {
			continue
		}
		existing, err := ParseWindow(interval.StartTime, interval.EndTime)
		if err != nil {
			// Stored rows are validated on write; a malformed one is
			// treated as occupying nothing.
			continue
		}
		if w.Overlaps(existing) {
			return true
		}
	}
	return false
}

// ValidateWindow enforces the booking time invariants: ordering, duration
// bounds, business hours and the 90-day booking horizon.
func ValidateWindow(date time.Time, w Window, now time.Time) error {
	if w.Start >= w.End {
		return appErrors.Clone(appErrors.ErrInvalidWindow, "start time must be before end time")
	}
	if d := w.Duration(); d < minLessonMinutes || d > maxLessonMinutes {
		return appErrors.Clone(appErrors.ErrInvalidWindow,
			fmt.Sprintf("lesson duration must be between %d and %d minutes", minLessonMinutes, maxLessonMinutes))
	}
	if w.Start < dayOpenMinute || w.End > dayCloseMinute {
		return appErrors.Clone(appErrors.ErrInvalidWindow,
			fmt.Sprintf("lessons run between %s and %s", FormatClock(dayOpenMinute), FormatClock(dayCloseMinute)))
	}

	day := dateOnly(date)
	today := dateOnly(now)
	if day.Before(today) {
		return appErrors.Clone(appErrors.ErrInvalidWindow, "lesson date cannot be in the past")
	}
	if day.After(today.AddDate(0, 0, maxAdvanceDays)) {
		return appErrors.Clone(appErrors.ErrInvalidWindow,
			fmt.Sprintf("lessons can be booked at most %d days ahead", maxAdvanceDays))
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses the wire date format used across booking payloads.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}
