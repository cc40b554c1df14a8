package services

import (
	"chatstat/internal/models"
	"chatstat/internal/statistic"
	"chatstat/internal/statistic/interfaces"
	"errors"
	"fmt"
	"os"
	"sort"
)

var ErrInvalidRange = errors.New("start day is after end day")

// shardSource returns the shard for year, or nil when the year has no data.
type shardSource func(year int) (*statistic.Shard, error)

// collect merges the users of every shard intersecting [start, end], walking
// years from the one holding end backwards. It stops early once a merged shard
// starts on or before start.
func collect(clock *models.Clock, start, end models.EpochDay, open shardSource) ([]*models.User, error) {
	if start > end {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, start, end)
	}
	r := models.NewDayRange(start, end)
	acc := make(map[uint64]*models.User)

	for year := clock.YearOf(end); year >= clock.YearOf(start); year-- {
		s, err := open(year)
		if err != nil {
			return nil, err
		}
		if s == nil {
			continue
		}
		first, last, ok := s.Bounds()
		if !ok || !r.Intersects(first, last) {
			continue
		}

		for id, u := range s.Users() {
			if existing, ok := acc[id]; ok {
				acc[id] = existing.Combine(u, r)
			} else {
				acc[id] = u.Filter(r)
			}
		}

		if first <= start {
			break
		}
	}

	users := make([]*models.User, 0, len(acc))
	for _, u := range acc {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// CollectData answers a range query straight from the files under directory,
// opening every shard read-only. Years without a shard file are skipped.
func CollectData(directory, community string, clock *models.Clock, compressor interfaces.CompressorInterface, start, end models.EpochDay) ([]*models.User, error) {
	if err := statistic.ValidateRoot(directory); err != nil {
		return nil, err
	}
	if err := statistic.ValidateCommunity(community); err != nil {
		return nil, err
	}
	if compressor == nil {
		compressor = &statistic.PlainCompression{}
	}

	return collect(clock, start, end, func(year int) (*statistic.Shard, error) {
		path := statistic.ShardFilePath(directory, community, year, compressor.Extension())
		s, err := statistic.LoadShard(path, true, clock, compressor)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return s, err
	})
}
