package models

import (
	"fmt"
	"time"
)

// EpochDay is the number of whole days elapsed since a Clock's reference instant.
type EpochDay uint64

const secondsPerDay = 24 * 60 * 60

// DefaultEpoch is the reference instant used when no other is configured.
var DefaultEpoch = time.Date(2025, time.May, 14, 0, 0, 0, 0, time.UTC)

// Clock converts between epoch days and absolute UTC instants.
type Clock struct {
	reference time.Time
	now       func() time.Time
}

// ParseReference parses an RFC3339 reference instant. Empty means DefaultEpoch.
// The instant must be UTC midnight so every epoch day sits inside one calendar year.
func ParseReference(value string) (time.Time, error) {
	if value == "" {
		return DefaultEpoch, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	t = t.UTC()
	if !t.Equal(t.Truncate(24 * time.Hour)) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrReference, t.Format(time.RFC3339))
	}
	return t, nil
}

func NewClock(reference time.Time) *Clock {
	return &Clock{reference: reference.UTC(), now: time.Now}
}

// NewFixedClock returns a clock whose Now always reports now. Used by tests and
// replays that must not depend on wall time.
func NewFixedClock(reference, now time.Time) *Clock {
	return &Clock{reference: reference.UTC(), now: func() time.Time { return now }}
}

func (c *Clock) Reference() time.Time {
	return c.reference
}

// Now returns the current UTC instant as fractional Unix seconds.
func (c *Clock) Now() float64 {
	return float64(c.now().UnixNano()) / float64(time.Second)
}

func (c *Clock) EpochToUnix(day EpochDay) time.Time {
	return c.reference.AddDate(0, 0, int(day))
}

// UnixToEpoch floors the distance to the reference in whole days.
// Instants before the reference clamp to day 0.
func (c *Clock) UnixToEpoch(t time.Time) EpochDay {
	diff := t.Unix() - c.reference.Unix()
	if diff < 0 {
		return 0
	}
	return EpochDay(diff / secondsPerDay)
}

// BeforeReference reports whether t would be clamped by UnixToEpoch.
func (c *Clock) BeforeReference(t time.Time) bool {
	return t.Before(c.reference)
}

func (c *Clock) NowEpochDay() EpochDay {
	return c.UnixToEpoch(c.now())
}

// YearOf is the UTC calendar year holding day. It matches the year of every
// instant inside day when the reference is UTC midnight.
func (c *Clock) YearOf(day EpochDay) int {
	return c.EpochToUnix(day).UTC().Year()
}
