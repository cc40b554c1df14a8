package models

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperty_IncrementTouchesOneBucket(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("increment adds exactly v to one bucket", prop.ForAll(
		func(prior []uint64, hour int, v uint64) bool {
			d := NewDay(0)
			for i, p := range prior {
				d.MsgHours[i%HoursPerDay] += p
			}
			before := d.MsgHours
			if err := d.Increment(hour, v); err != nil {
				return false
			}
			for i := range before {
				want := before[i]
				if i == hour {
					want += v
				}
				if d.MsgHours[i] != want {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(HoursPerDay, gen.UInt64Range(0, 1_000_000)),
		gen.IntRange(0, HoursPerDay-1),
		gen.UInt64Range(0, 1_000_000),
	))

	properties.Property("total equals the sum of all buckets", prop.ForAll(
		func(hours []int, amounts []uint64) bool {
			d := NewDay(0)
			var want uint64
			for i, h := range hours {
				a := amounts[i%len(amounts)]
				if err := d.Increment(h, a); err != nil {
					return false
				}
				want += a
			}
			var buckets uint64
			for _, v := range d.MsgHours {
				buckets += v
			}
			return d.Total() == want && buckets == want
		},
		gen.SliceOf(gen.IntRange(0, HoursPerDay-1)),
		gen.SliceOfN(8, gen.UInt64Range(0, 10_000)),
	))

	properties.TestingRun(t)
}

func TestDay_IncrementOutOfRange(t *testing.T) {
	d := NewDay(0)
	for _, hour := range []int{24, 25, -1, 100} {
		err := d.Increment(hour, 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrHourRange))
		var he *HourError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, hour, he.Hour)
	}
	assert.Equal(t, uint64(0), d.Total())
}

func TestDay_IncrementReaction(t *testing.T) {
	d := NewDay(0)
	require.NoError(t, d.IncrementReaction("thumbsup", 3, 2))
	require.NoError(t, d.IncrementReaction("thumbsup", 3, 1))
	require.NoError(t, d.IncrementReaction("thumbsup", 23, 4))

	assert.Equal(t, uint64(3), d.EmojiHours["thumbsup"][3])
	assert.Equal(t, uint64(4), d.EmojiHours["thumbsup"][23])
	assert.Equal(t, uint64(7), d.TotalReactionsOf("thumbsup"))
	assert.Equal(t, uint64(0), d.TotalReactionsOf("unknown"))
	assert.Equal(t, uint64(0), d.Total())
}

func TestDay_IncrementReactionOutOfRange(t *testing.T) {
	d := NewDay(0)
	err := d.IncrementReaction("heart", 24, 1)
	assert.ErrorIs(t, err, ErrHourRange)
	assert.NotContains(t, d.EmojiHours, "heart")
}

func TestDay_Averages(t *testing.T) {
	d := NewDay(0)
	require.NoError(t, d.Increment(0, 12))
	require.NoError(t, d.Increment(12, 12))
	require.NoError(t, d.IncrementReaction("fire", 5, 48))

	assert.InDelta(t, 1.0, d.AverageHourly(), 1e-9)
	assert.InDelta(t, 2.0, d.AverageReactionHourly("fire"), 1e-9)
	assert.Equal(t, 0.0, d.AverageReactionHourly("none"))
}

func TestDay_ReactionReturnsCopy(t *testing.T) {
	d := NewDay(0)
	require.NoError(t, d.IncrementReaction("fire", 1, 1))
	h := d.Reaction("fire")
	h[1] = 99
	assert.Equal(t, uint64(1), d.EmojiHours["fire"][1])
	assert.Equal(t, Hours{}, d.Reaction("missing"))
}

func TestDay_CloneIsDeep(t *testing.T) {
	d := NewDay(42)
	require.NoError(t, d.Increment(1, 1))
	require.NoError(t, d.IncrementReaction("fire", 1, 1))

	cp := d.Clone()
	require.NoError(t, cp.Increment(1, 5))
	require.NoError(t, cp.IncrementReaction("fire", 1, 5))

	assert.Equal(t, uint64(1), d.MsgHours[1])
	assert.Equal(t, uint64(1), d.EmojiHours["fire"][1])
	assert.Equal(t, 42.0, cp.Date)
}

func TestNewDayForEpoch_StampsMidnight(t *testing.T) {
	clock := NewClock(DefaultEpoch)
	d := NewDayForEpoch(clock, 1)
	assert.Equal(t, float64(DefaultEpoch.Unix()+secondsPerDay), d.Date)
}
