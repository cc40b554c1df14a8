package models

import "sort"

// DayRange bounds a query by epoch day. A nil side is unbounded.
type DayRange struct {
	Start *EpochDay
	End   *EpochDay
}

func NewDayRange(start, end EpochDay) DayRange {
	return DayRange{Start: &start, End: &end}
}

// Contains is inclusive on both bounded sides.
func (r DayRange) Contains(day EpochDay) bool {
	if r.Start != nil && day < *r.Start {
		return false
	}
	if r.End != nil && day > *r.End {
		return false
	}
	return true
}

// Intersects reports whether [first, last] overlaps the range.
func (r DayRange) Intersects(first, last EpochDay) bool {
	if r.Start != nil && last < *r.Start {
		return false
	}
	if r.End != nil && first > *r.End {
		return false
	}
	return true
}

// User is one member's activity: epoch day to histogram.
type User struct {
	ID   uint64            `json:"id"`
	Name string            `json:"name"`
	Days map[EpochDay]*Day `json:"days"`
}

func NewUser(id uint64, name string) *User {
	return &User{
		ID:   id,
		Name: name,
		Days: make(map[EpochDay]*Day),
	}
}

func (u *User) Day(day EpochDay) (*Day, bool) {
	d, ok := u.Days[day]
	return d, ok
}

func (u *User) getOrCreateDay(clock *Clock, day EpochDay) *Day {
	if u.Days == nil {
		u.Days = make(map[EpochDay]*Day)
	}
	d, ok := u.Days[day]
	if !ok {
		d = NewDayForEpoch(clock, day)
		u.Days[day] = d
	}
	return d
}

// UpdateMessageCount validates the hour before creating the day, so a rejected
// update leaves the record untouched.
func (u *User) UpdateMessageCount(clock *Clock, day EpochDay, hour int, count uint64) error {
	if err := checkHour(hour); err != nil {
		return err
	}
	return u.getOrCreateDay(clock, day).Increment(hour, count)
}

func (u *User) UpdateReactionCount(clock *Clock, day EpochDay, hour int, reaction string, count uint64) error {
	if err := checkHour(hour); err != nil {
		return err
	}
	return u.getOrCreateDay(clock, day).IncrementReaction(reaction, hour, count)
}

func (u *User) Sum() uint64 {
	var total uint64
	for _, d := range u.Days {
		total += d.Total()
	}
	return total
}

func (u *User) SumReactions(reaction string) uint64 {
	var total uint64
	for _, d := range u.Days {
		total += d.TotalReactionsOf(reaction)
	}
	return total
}

// SortedDays returns the day keys in ascending order.
func (u *User) SortedDays() []EpochDay {
	keys := make([]EpochDay, 0, len(u.Days))
	for k := range u.Days {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Combine returns a new record holding every day of u plus the days of other
// that u does not have and that fall inside r. Days present in both always keep
// u's histogram; neither input is modified.
func (u *User) Combine(other *User, r DayRange) *User {
	merged := u.Clone()
	if other == nil {
		return merged
	}
	for day, d := range other.Days {
		if _, ok := merged.Days[day]; ok {
			continue
		}
		if !r.Contains(day) {
			continue
		}
		merged.Days[day] = d.Clone()
	}
	return merged
}

// Filter returns a copy keeping only the days inside r.
func (u *User) Filter(r DayRange) *User {
	cp := NewUser(u.ID, u.Name)
	for day, d := range u.Days {
		if r.Contains(day) {
			cp.Days[day] = d.Clone()
		}
	}
	return cp
}

func (u *User) Clone() *User {
	cp := NewUser(u.ID, u.Name)
	for day, d := range u.Days {
		cp.Days[day] = d.Clone()
	}
	return cp
}
