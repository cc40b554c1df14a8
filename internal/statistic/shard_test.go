package statistic

import (
	"chatstat/internal/models"
	"chatstat/internal/testutil"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClock = models.NewClock(models.DefaultEpoch)

func at(day, hour int) time.Time {
	return models.DefaultEpoch.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

func newTestShard(t *testing.T) *Shard {
	t.Helper()
	return NewShard(filepath.Join(t.TempDir(), "guild", "guild_2025.json"), testClock, nil)
}

func assertShardsEqual(t *testing.T, want, got *Shard) {
	t.Helper()
	assert.Equal(t, want.Users(), got.Users())
	assert.Equal(t, want.Reactions(), got.Reactions())
	assert.Equal(t, want.Meta(), got.Meta())
	wf, wl, wok := want.Bounds()
	gf, gl, gok := got.Bounds()
	assert.Equal(t, []interface{}{wf, wl, wok}, []interface{}{gf, gl, gok})
}

func TestNewShard_Empty(t *testing.T) {
	s := newTestShard(t)
	assert.Empty(t, s.Users())
	assert.Empty(t, s.Reactions())
	assert.False(t, s.ReadOnly())
	assert.False(t, s.Dirty())
	_, _, ok := s.Bounds()
	assert.False(t, ok)
}

func TestShard_UpdateMessageCount(t *testing.T) {
	s := newTestShard(t)
	ts := time.Date(2025, 5, 15, 14, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateMessageCount(42, "Alice", ts, 1))

	u, ok := s.User(42)
	require.True(t, ok)
	assert.Equal(t, "Alice", u.Name)
	d, ok := u.Day(1)
	require.True(t, ok)
	for h := 0; h < models.HoursPerDay; h++ {
		if h == 14 {
			assert.Equal(t, uint64(1), d.MsgHours[h])
		} else {
			assert.Equal(t, uint64(0), d.MsgHours[h], "hour %d", h)
		}
	}
	first, last, ok := s.Bounds()
	require.True(t, ok)
	assert.Equal(t, models.EpochDay(1), first)
	assert.Equal(t, models.EpochDay(1), last)
	assert.True(t, s.Dirty())
}

func TestShard_BoundsTrackExtremes(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.UpdateMessageCount(1, "a", at(10, 0), 1))
	require.NoError(t, s.UpdateMessageCount(2, "b", at(4, 3), 1))
	require.NoError(t, s.UpdateReactionCount(1, "a", at(30, 5), "fire", 2))
	require.NoError(t, s.UpdateMessageCount(1, "a", at(12, 0), 1))

	assert.Equal(t, ShardMeta{FirstDay: 4, LastDay: 30}, s.Meta())
}

func TestShard_ReactionVocabulary(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.UpdateReactionCount(1, "a", at(1, 1), "fire", 1))
	require.NoError(t, s.UpdateReactionCount(2, "b", at(1, 2), "heart", 1))
	require.NoError(t, s.UpdateReactionCount(1, "a", at(2, 1), "fire", 3))

	assert.Equal(t, []string{"fire", "heart"}, s.Reactions())
	u, _ := s.User(1)
	assert.Equal(t, uint64(4), u.SumReactions("fire"))
}

func TestShard_GetOrCreateUserKeepsExisting(t *testing.T) {
	s := newTestShard(t)
	a := s.GetOrCreateUser(7, "first")
	b := s.GetOrCreateUser(7, "second")
	assert.Same(t, a, b)
	assert.Equal(t, "first", b.Name)
}

func TestShard_UpdateLastAndFirstDay(t *testing.T) {
	s := newTestShard(t)
	s.UpdateLastDay(5)
	assert.Equal(t, ShardMeta{FirstDay: 5, LastDay: 5}, s.Meta())

	s.UpdateLastDay(3)
	assert.Equal(t, ShardMeta{FirstDay: 5, LastDay: 5}, s.Meta())

	s.UpdateLastDay(9)
	s.UpdateFirstDay(2)
	assert.Equal(t, ShardMeta{FirstDay: 2, LastDay: 9}, s.Meta())
}

func TestShard_UpdateLastDayNow(t *testing.T) {
	clock := models.NewFixedClock(models.DefaultEpoch, at(40, 6))
	s := NewShard(filepath.Join(t.TempDir(), "x.json"), clock, nil)
	s.UpdateLastDayNow()
	assert.Equal(t, models.EpochDay(40), s.Meta().LastDay)
}

func TestShard_FlushAndLoadRoundTrip(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.UpdateMessageCount(42, "Alice", at(1, 14), 3))
	require.NoError(t, s.UpdateReactionCount(42, "Alice", at(2, 0), "fire", 2))
	require.NoError(t, s.UpdateMessageCount(7, "Bob", at(5, 23), 1))

	require.NoError(t, s.Flush())
	assert.False(t, s.Dirty())

	loaded, err := LoadShard(s.Path(), false, testClock, nil)
	require.NoError(t, err)
	assertShardsEqual(t, s, loaded)
	assert.False(t, loaded.ReadOnly())
}

func TestShard_FlushCompressedRoundTrip(t *testing.T) {
	zst, err := NewZstdCompressor()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "guild", "guild_2025.json.zst")
	s := NewShard(path, testClock, zst)
	require.NoError(t, s.UpdateMessageCount(1, "a", at(3, 3), 3))
	require.NoError(t, s.Flush())

	_, err = LoadShard(path, true, testClock, nil)
	assert.ErrorIs(t, err, models.ErrParse)

	loaded, err := LoadShard(path, true, testClock, zst)
	require.NoError(t, err)
	assertShardsEqual(t, s, loaded)
}

func TestProperty_ShardRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)
	dir := t.TempDir()

	properties.Property("flush then load yields an equal shard", prop.ForAll(
		func(users []uint64, days []int, hours []int, counts []uint64, lastDay int) bool {
			path := filepath.Join(dir, "prop.json")
			s := NewShard(path, testClock, nil)
			if lastDay > 0 {
				s.UpdateLastDay(models.EpochDay(lastDay))
			}
			for i, id := range users {
				ts := at(days[i%len(days)], hours[i%len(hours)])
				c := counts[i%len(counts)]
				if err := s.UpdateMessageCount(id, "u", ts, c); err != nil {
					return false
				}
				if i%2 == 0 {
					if err := s.UpdateReactionCount(id, "u", ts, "r", c); err != nil {
						return false
					}
				}
			}
			if err := s.Flush(); err != nil {
				return false
			}
			loaded, err := LoadShard(path, false, testClock, nil)
			if err != nil {
				return false
			}
			wf, wl, wok := s.Bounds()
			gf, gl, gok := loaded.Bounds()
			return assert.ObjectsAreEqual(s.Users(), loaded.Users()) &&
				assert.ObjectsAreEqual(s.Reactions(), loaded.Reactions()) &&
				s.Meta() == loaded.Meta() &&
				wf == gf && wl == gl && wok == gok
		},
		gen.SliceOf(gen.UInt64Range(1, 50)),
		gen.SliceOfN(4, gen.IntRange(0, 200)),
		gen.SliceOfN(3, gen.IntRange(0, 23)),
		gen.SliceOfN(2, gen.UInt64Range(0, 1000)),
		gen.IntRange(0, 300),
	))

	properties.TestingRun(t)
}

func TestShard_BoundsWithoutUsersSurviveReload(t *testing.T) {
	now := models.DefaultEpoch.AddDate(0, 0, 30).Add(9 * time.Hour)
	path := filepath.Join(t.TempDir(), "guild", "guild_2025.json")
	s := NewShard(path, models.NewFixedClock(models.DefaultEpoch, now), nil)
	s.UpdateLastDayNow()
	require.NoError(t, s.Flush())

	loaded, err := LoadShard(path, true, testClock, nil)
	require.NoError(t, err)
	first, last, ok := loaded.Bounds()
	assert.True(t, ok)
	assert.Equal(t, models.EpochDay(30), first)
	assert.Equal(t, models.EpochDay(30), last)
	assertShardsEqual(t, s, loaded)
}

func TestLoadShard_EmptyMetaIsUnbounded(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.Flush())

	loaded, err := LoadShard(s.Path(), true, testClock, nil)
	require.NoError(t, err)
	_, _, ok := loaded.Bounds()
	assert.False(t, ok)
}

func TestLoadShard_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := LoadShard(path, false, testClock, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrIo)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), path)
}

func TestLoadShard_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadShard(path, false, testClock, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrParse)
	assert.Contains(t, err.Error(), path)
}

func TestLoadShard_DecompressError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
	comp := &testutil.MockCompressor{
		DecompressFn: func(b []byte) ([]byte, error) { return nil, errors.New("decompress failed") },
	}
	_, err := LoadShard(path, false, testClock, comp)
	assert.ErrorIs(t, err, models.ErrParse)
	assert.Contains(t, err.Error(), "decompress failed")
}

func TestLoadShard_DocumentFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	hours := `[0,0,0,0,0,0,0,0,0,0,0,0,0,0,5,0,0,0,0,0,0,0,0,0]`
	doc := `{"users":{"42":{"id":42,"name":"Alice","days":{"1":{"date":1747267200,"msg_hours":` + hours +
		`,"emoji_hours":{"fire":` + hours + `}}}}},"reactions":["fire"],"meta":{"first_day":1,"last_day":1}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	s, err := LoadShard(path, true, testClock, nil)
	require.NoError(t, err)
	u, ok := s.User(42)
	require.True(t, ok)
	assert.Equal(t, uint64(5), u.Days[1].MsgHours[14])
	assert.Equal(t, uint64(5), u.Days[1].TotalReactionsOf("fire"))
	assert.Equal(t, []string{"fire"}, s.Reactions())
	assert.Equal(t, ShardMeta{FirstDay: 1, LastDay: 1}, s.Meta())
	assert.True(t, s.ReadOnly())
}

func TestShard_FlushReadOnly(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.Flush())

	ro, err := LoadShard(s.Path(), true, testClock, nil)
	require.NoError(t, err)
	err = ro.Flush()
	assert.ErrorIs(t, err, models.ErrReadOnly)
}

func TestShard_FlushCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "s.json")
	s := NewShard(path, testClock, nil)
	require.NoError(t, s.Flush())
	_, err := os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestShard_FlushCompressError(t *testing.T) {
	comp := &testutil.MockCompressor{
		CompressFn: func(b []byte) ([]byte, error) { return nil, errors.New("compress failed") },
	}
	s := NewShard(filepath.Join(t.TempDir(), "s.json"), testClock, comp)
	err := s.Flush()
	assert.ErrorIs(t, err, models.ErrSerialize)
	assert.Contains(t, err.Error(), "compress failed")
}

func TestShard_FlushWriteError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s := NewShard(filepath.Join(blocker, "s.json"), testClock, nil)
	err := s.Flush()
	assert.ErrorIs(t, err, models.ErrIo)
}

func TestShard_CloneIsIndependentAndReadOnly(t *testing.T) {
	s := newTestShard(t)
	require.NoError(t, s.UpdateMessageCount(1, "a", at(1, 1), 1))

	cp := s.Clone()
	require.NoError(t, cp.UpdateMessageCount(1, "a", at(1, 1), 10))
	require.NoError(t, cp.UpdateMessageCount(2, "b", at(50, 1), 1))

	u, _ := s.User(1)
	assert.Equal(t, uint64(1), u.Sum())
	_, ok := s.User(2)
	assert.False(t, ok)
	assert.Equal(t, models.EpochDay(1), s.Meta().LastDay)
	assert.ErrorIs(t, cp.Flush(), models.ErrReadOnly)
}

func TestShardFileName(t *testing.T) {
	assert.Equal(t, filepath.Join("guild", "guild_2025.json"), ShardFileName("guild", 2025, ".json"))
	assert.Equal(t, filepath.Join("/data", "guild", "guild_2024.json.zst"), ShardFilePath("/data", "guild", 2024, ".json.zst"))
}

func TestValidateCommunity(t *testing.T) {
	assert.NoError(t, ValidateCommunity("guild"))
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.ErrorIs(t, ValidateCommunity(bad), models.ErrPath, bad)
	}
}

func TestValidateRoot(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, ValidateRoot(filepath.Join(dir, "db")))
	assert.NoError(t, ValidateRoot(dir))

	assert.ErrorIs(t, ValidateRoot(""), models.ErrPath)
	assert.ErrorIs(t, ValidateRoot("/"), models.ErrPath)
	assert.ErrorIs(t, ValidateRoot(filepath.Join(dir, "missing", "db")), models.ErrPath)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.ErrorIs(t, ValidateRoot(filepath.Join(file, "db")), models.ErrPath)
}
