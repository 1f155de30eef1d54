package domain

import (
	"fmt"
	"time"
)

// Business window for same-day auto-confirmation: Monday through
// Friday, 08:00 inclusive to 18:00 exclusive, except that seventeen
// o'clock is only bookable on the hour.
const (
	businessOpenMinute  = 8 * 60
	businessCloseMinute = 18 * 60
	lastSharpMinute     = 17 * 60
)

// MinutesPerDay bounds the start_minute column.
const MinutesPerDay = 24 * 60

// ParseMinuteOfDay converts an "HH:MM" clock string to minutes since
// midnight.
func ParseMinuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatMinuteOfDay renders minutes since midnight as "HH:MM".
func FormatMinuteOfDay(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// DateOnly strips the time component, normalizing a calendar date to
// midnight UTC, the canonical form for storage and comparison.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SlotTime combines a calendar date and a minute-of-day into the
// scheduled moment in the clinic's timezone.
func SlotTime(date time.Time, startMinute int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), startMinute/60, startMinute%60, 0, 0, loc)
}

// HoursUntil is the signed distance from now to the scheduled moment.
// Negative once the slot has passed.
func HoursUntil(now, slot time.Time) float64 {
	return slot.Sub(now).Hours()
}

// sameDay reports whether date falls on now's calendar day in loc.
// date carries a bare calendar day (midnight UTC), so its components
// are read directly; converting the instant into loc would shift it
// onto the previous day anywhere west of UTC.
func sameDay(now, date time.Time, loc *time.Location) bool {
	ny, nm, nd := now.In(loc).Date()
	return ny == date.Year() && nm == date.Month() && nd == date.Day()
}

// PastDay reports whether date falls on a calendar day before now's
// day in loc.
func PastDay(now, date time.Time, loc *time.Location) bool {
	slotDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	nowDay := now.In(loc)
	today := time.Date(nowDay.Year(), nowDay.Month(), nowDay.Day(), 0, 0, 0, 0, loc)
	return slotDay.Before(today)
}

// AutoConfirm decides, exactly once at creation, whether a new
// appointment is promoted straight to confirmed. It returns the
// resulting state and a human-readable reason used in the booking
// notification.
func AutoConfirm(now, date time.Time, startMinute int, loc *time.Location) (State, string) {
	if !sameDay(now, date, loc) {
		// PastDay is rejected before this point; any other day is a
		// future day.
		return StateConfirmed, "confirmed automatically for a future date"
	}

	weekday := SlotTime(date, startMinute, loc).Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return StateScheduled, "pending confirmation: outside weekday business hours"
	}
	if startMinute < businessOpenMinute || startMinute >= businessCloseMinute {
		return StateScheduled, "pending confirmation: outside business hours (08:00-18:00)"
	}
	if startMinute > lastSharpMinute && startMinute < businessCloseMinute {
		return StateScheduled, "pending confirmation: after 17:00 only on-the-hour bookings confirm"
	}
	return StateConfirmed, "confirmed automatically within business hours"
}
