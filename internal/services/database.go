package services

import (
	"chatstat/internal/models"
	"chatstat/internal/providers"
	"chatstat/internal/statistic"
	"chatstat/internal/statistic/interfaces"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type DatabaseOptions struct {
	Directory     string
	Community     string
	Clock         *models.Clock
	Compressor    interfaces.CompressorInterface
	MaxOpenShards int
	Logger        providers.Logger
	Metrics       providers.MetricsProviderInterface
}

// Database is one community's activity store. Updates and queries are
// serialized, so updates apply in submission order.
type Database struct {
	mu         sync.Mutex
	community  string
	clock      *models.Clock
	shards     *statistic.ShardCache
	logger     providers.Logger
	metrics    providers.MetricsProviderInterface
	generation atomic.Uint64
}

func NewDatabase(opts DatabaseOptions) (*Database, error) {
	if opts.Clock == nil {
		opts.Clock = models.NewClock(models.DefaultEpoch)
	}
	if opts.Metrics == nil {
		opts.Metrics = providers.NewNoopMetrics()
	}
	cache, err := statistic.NewShardCache(statistic.ShardCacheOptions{
		Directory:  opts.Directory,
		Community:  opts.Community,
		Clock:      opts.Clock,
		Compressor: opts.Compressor,
		Capacity:   opts.MaxOpenShards,
		Logger:     opts.Logger,
		Metrics:    opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Database{
		community: opts.Community,
		clock:     opts.Clock,
		shards:    cache,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

func (db *Database) Community() string {
	return db.community
}

// UpdateUsers applies batch in order. The first failing record aborts the batch;
// records before it stay applied.
func (db *Database) UpdateUsers(batch []models.UserUpdate) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	applied := 0
	defer func() {
		if applied > 0 {
			db.generation.Add(1)
			db.metrics.AddUpdates(db.community, applied)
		}
	}()

	for i := range batch {
		if err := db.apply(&batch[i]); err != nil {
			db.logger.Errorf(providers.TypeIngest, "Community %s: update %d of %d failed: %s", db.community, i, len(batch), err)
			return fmt.Errorf("update %d (user %d): %w", i, batch[i].UserID, err)
		}
		applied++
	}
	db.logger.Debugf(providers.TypeIngest, "Community %s: applied %d updates", db.community, applied)
	return nil
}

func (db *Database) apply(rec *models.UserUpdate) error {
	if db.clock.BeforeReference(rec.Timestamp) {
		return fmt.Errorf("%w: %s", models.ErrBeforeEpoch, rec.Timestamp.UTC().Format(time.RFC3339))
	}
	year := rec.Timestamp.UTC().Year()
	shard, err := db.shards.OpenMutable(year)
	if err != nil {
		return err
	}
	if err := shard.UpdateMessageCount(rec.UserID, rec.Name, rec.Timestamp, rec.Messages); err != nil {
		return err
	}
	for _, reaction := range rec.Reactions {
		if err := shard.UpdateReactionCount(rec.UserID, rec.Name, rec.Timestamp, reaction.Name, reaction.Count); err != nil {
			return err
		}
	}
	return nil
}

// CollectData returns the merged records of every user active in [start, end],
// ordered by user id. The result is an owned copy.
func (db *Database) CollectData(start, end models.EpochDay) ([]*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return collect(db.clock, start, end, func(year int) (*statistic.Shard, error) {
		if !db.shards.Exists(year) {
			return nil, nil
		}
		return db.shards.OpenOwnedCopy(year)
	})
}

// Generation changes after every batch that applied at least one record.
func (db *Database) Generation() uint64 {
	return db.generation.Load()
}

func (db *Database) Flush() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.shards.FlushAll()
}

func (db *Database) OpenShards() int {
	return db.shards.Len()
}
