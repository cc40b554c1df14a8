package services

import (
	"chatstat/internal/models"
	"chatstat/internal/statistic"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shardWith(t *testing.T, updates ...models.UserUpdate) *statistic.Shard {
	t.Helper()
	s := statistic.NewShard(filepath.Join(t.TempDir(), "s.json"), testClock, nil)
	for _, u := range updates {
		require.NoError(t, s.UpdateMessageCount(u.UserID, u.Name, u.Timestamp, u.Messages))
	}
	return s
}

func TestCollect_StopsOnceRangeIsCovered(t *testing.T) {
	shards := map[int]*statistic.Shard{
		2026: shardWith(t, msg(1, "a", 240, 0, 1)),
		2025: shardWith(t, msg(1, "a", 100, 0, 1)),
	}
	var opened []int
	users, err := collect(testClock, 235, 260, func(year int) (*statistic.Shard, error) {
		opened = append(opened, year)
		return shards[year], nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2026}, opened)
	require.Len(t, users, 1)
	assert.Equal(t, []models.EpochDay{240}, users[0].SortedDays())
}

func TestCollect_WalksBackUntilStartYear(t *testing.T) {
	shards := map[int]*statistic.Shard{
		2026: shardWith(t, msg(1, "a", 240, 0, 1)),
		2025: shardWith(t, msg(1, "a", 100, 0, 2), msg(2, "b", 150, 0, 5)),
	}
	var opened []int
	users, err := collect(testClock, 90, 260, func(year int) (*statistic.Shard, error) {
		opened = append(opened, year)
		return shards[year], nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2026, 2025}, opened)
	got := byID(users)
	assert.Equal(t, []models.EpochDay{100, 240}, got[1].SortedDays())
	assert.Equal(t, uint64(5), got[2].Sum())
}

func TestCollect_SkipsNonIntersectingAndEmptyShards(t *testing.T) {
	shards := map[int]*statistic.Shard{
		2026: statistic.NewShard(filepath.Join(t.TempDir(), "empty.json"), testClock, nil),
		2025: shardWith(t, msg(1, "a", 10, 0, 1)),
	}
	users, err := collect(testClock, 100, 260, func(year int) (*statistic.Shard, error) {
		return shards[year], nil
	})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestCollect_PropagatesSourceError(t *testing.T) {
	_, err := collect(testClock, 0, 10, func(int) (*statistic.Shard, error) {
		return nil, models.NewStorageError(models.ErrParse, "parse shard", "x.json", nil)
	})
	assert.ErrorIs(t, err, models.ErrParse)
}

func TestCollectData_FromFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	db, _, _ := newTestDatabase(t, dir)
	require.NoError(t, db.UpdateUsers([]models.UserUpdate{msg(1, "a", 12, 1, 2), msg(2, "b", 300, 1, 1)}))
	require.NoError(t, db.Flush())

	users, err := CollectData(dir, "guild", testClock, nil, 10, 400)
	require.NoError(t, err)
	got := byID(users)
	assert.Equal(t, uint64(2), got[1].Sum())
	assert.Equal(t, uint64(1), got[2].Sum())
}

func TestCollectData_MissingCommunityIsEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	users, err := CollectData(dir, "nobody", testClock, nil, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, users)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestCollectData_CorruptShard(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	path := statistic.ShardFilePath(dir, "guild", 2025, ".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	_, err := CollectData(dir, "guild", testClock, nil, 0, 10)
	assert.ErrorIs(t, err, models.ErrParse)
	assert.Contains(t, err.Error(), path)
}

func TestCollectData_InvalidPaths(t *testing.T) {
	_, err := CollectData("", "guild", testClock, nil, 0, 1)
	assert.ErrorIs(t, err, models.ErrPath)
	_, err = CollectData(filepath.Join(t.TempDir(), "db"), "a/b", testClock, nil, 0, 1)
	assert.ErrorIs(t, err, models.ErrPath)
}
