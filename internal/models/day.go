package models

const HoursPerDay = 24

// Hours is one counter per hour of the day, index 0 is 00:00-00:59 UTC.
type Hours [HoursPerDay]uint64

func (h *Hours) Sum() uint64 {
	var total uint64
	for _, v := range h {
		total += v
	}
	return total
}

func (h *Hours) Average() float64 {
	return float64(h.Sum()) / HoursPerDay
}

// Day is the hourly activity histogram of one user on one epoch day.
type Day struct {
	Date       float64           `json:"date"`
	MsgHours   Hours             `json:"msg_hours"`
	EmojiHours map[string]*Hours `json:"emoji_hours"`
}

func NewDay(date float64) *Day {
	return &Day{
		Date:       date,
		EmojiHours: make(map[string]*Hours),
	}
}

// NewDayForEpoch stamps the day with the Unix seconds of its midnight.
func NewDayForEpoch(clock *Clock, day EpochDay) *Day {
	return NewDay(float64(clock.EpochToUnix(day).Unix()))
}

func (d *Day) Increment(hour int, amount uint64) error {
	if err := checkHour(hour); err != nil {
		return err
	}
	d.MsgHours[hour] += amount
	return nil
}

func (d *Day) IncrementReaction(reaction string, hour int, amount uint64) error {
	if err := checkHour(hour); err != nil {
		return err
	}
	if d.EmojiHours == nil {
		d.EmojiHours = make(map[string]*Hours)
	}
	h, ok := d.EmojiHours[reaction]
	if !ok {
		h = &Hours{}
		d.EmojiHours[reaction] = h
	}
	h[hour] += amount
	return nil
}

func (d *Day) Total() uint64 {
	return d.MsgHours.Sum()
}

func (d *Day) TotalReactionsOf(reaction string) uint64 {
	if h, ok := d.EmojiHours[reaction]; ok {
		return h.Sum()
	}
	return 0
}

// Reaction returns a copy of the reaction's buckets, all zero when unknown.
func (d *Day) Reaction(reaction string) Hours {
	if h, ok := d.EmojiHours[reaction]; ok {
		return *h
	}
	return Hours{}
}

func (d *Day) AverageHourly() float64 {
	return d.MsgHours.Average()
}

func (d *Day) AverageReactionHourly(reaction string) float64 {
	if h, ok := d.EmojiHours[reaction]; ok {
		return h.Average()
	}
	return 0
}

func (d *Day) Clone() *Day {
	cp := &Day{
		Date:       d.Date,
		MsgHours:   d.MsgHours,
		EmojiHours: make(map[string]*Hours, len(d.EmojiHours)),
	}
	for name, h := range d.EmojiHours {
		hours := *h
		cp.EmojiHours[name] = &hours
	}
	return cp
}
