package statistic

import (
	"chatstat/internal/models"
	"chatstat/internal/providers"
	"chatstat/internal/statistic/interfaces"
	"container/list"
	"errors"
	"os"
	"sort"
	"sync"
)

// Shard load outcomes reported to metrics.
const (
	ShardLoaded  = "loaded"
	ShardCreated = "created"
	ShardEvicted = "evicted"
)

type ShardCacheOptions struct {
	Directory  string
	Community  string
	Clock      *models.Clock
	Compressor interfaces.CompressorInterface
	// Capacity bounds the number of resident shards. Zero or less keeps every
	// shard once loaded.
	Capacity int
	Logger   providers.Logger
	Metrics  providers.MetricsProviderInterface
}

type cacheEntry struct {
	year  int
	shard *Shard
	elem  *list.Element
}

// ShardCache lazily loads one community's yearly shards from disk.
type ShardCache struct {
	mu         sync.Mutex
	directory  string
	community  string
	clock      *models.Clock
	compressor interfaces.CompressorInterface
	capacity   int
	logger     providers.Logger
	metrics    providers.MetricsProviderInterface
	entries    map[int]*cacheEntry
	recency    *list.List // front is most recently used
}

func NewShardCache(opts ShardCacheOptions) (*ShardCache, error) {
	if err := ValidateRoot(opts.Directory); err != nil {
		return nil, err
	}
	if err := ValidateCommunity(opts.Community); err != nil {
		return nil, err
	}
	if opts.Compressor == nil {
		opts.Compressor = &PlainCompression{}
	}
	if opts.Clock == nil {
		opts.Clock = models.NewClock(models.DefaultEpoch)
	}
	if opts.Metrics == nil {
		opts.Metrics = providers.NewNoopMetrics()
	}
	return &ShardCache{
		directory:  opts.Directory,
		community:  opts.Community,
		clock:      opts.Clock,
		compressor: opts.Compressor,
		capacity:   opts.Capacity,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		entries:    make(map[int]*cacheEntry),
		recency:    list.New(),
	}, nil
}

func (c *ShardCache) Community() string {
	return c.community
}

func (c *ShardCache) Directory() string {
	return c.directory
}

func (c *ShardCache) Path(year int) string {
	return ShardFilePath(c.directory, c.community, year, c.compressor.Extension())
}

// OpenMutable returns the resident shard for year, loading it from disk or creating
// an empty one when no file exists. Repeated calls return the same instance while
// it stays resident.
func (c *ShardCache) OpenMutable(year int) (*Shard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open(year)
}

// OpenOwnedCopy returns an independent copy of the shard for year. Changes to the
// copy never reach the cache or the disk.
func (c *ShardCache) OpenOwnedCopy(year int) (*Shard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.open(year)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// Exists reports whether year is resident or has a file on disk.
func (c *ShardCache) Exists(year int) bool {
	c.mu.Lock()
	_, ok := c.entries[year]
	c.mu.Unlock()
	if ok {
		return true
	}
	_, err := os.Stat(c.Path(year))
	return err == nil
}

// Must be called under c.mu.
func (c *ShardCache) open(year int) (*Shard, error) {
	if e, ok := c.entries[year]; ok {
		c.recency.MoveToFront(e.elem)
		return e.shard, nil
	}

	path := c.Path(year)
	s, err := LoadShard(path, false, c.clock, c.compressor)
	switch {
	case err == nil:
		c.logger.Debugf(providers.TypeStorage, "Loaded shard %s", path)
		c.metrics.IncShardLoads(ShardLoaded)
	case errors.Is(err, os.ErrNotExist):
		c.logger.Debugf(providers.TypeStorage, "No shard at %s, starting empty", path)
		c.metrics.IncShardLoads(ShardCreated)
		s = NewShard(path, c.clock, c.compressor)
	default:
		c.logger.Errorf(providers.TypeStorage, "Failed to open shard %s: %s", path, err)
		return nil, err
	}

	e := &cacheEntry{year: year, shard: s}
	e.elem = c.recency.PushFront(e)
	c.entries[year] = e
	c.evictIfNeeded()
	return s, nil
}

// evictIfNeeded drops least recently used shards above capacity. Dirty shards are
// flushed first and stay resident if the flush fails. The most recent entry is
// never evicted. Must be called under c.mu.
func (c *ShardCache) evictIfNeeded() {
	if c.capacity <= 0 {
		return
	}
	elem := c.recency.Back()
	for len(c.entries) > c.capacity && elem != nil && elem != c.recency.Front() {
		prev := elem.Prev()
		e := elem.Value.(*cacheEntry)
		if e.shard.Dirty() {
			if err := e.shard.Flush(); err != nil {
				c.logger.Errorf(providers.TypeStorage, "Keeping shard %d resident, flush failed: %s", e.year, err)
				elem = prev
				continue
			}
		}
		c.recency.Remove(elem)
		delete(c.entries, e.year)
		c.metrics.IncShardLoads(ShardEvicted)
		c.logger.Debugf(providers.TypeStorage, "Evicted shard %s/%d", c.community, e.year)
		elem = prev
	}
}

// FlushAll writes every dirty resident shard.
func (c *ShardCache) FlushAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, year := range c.yearsLocked() {
		s := c.entries[year].shard
		if !s.Dirty() {
			continue
		}
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
			continue
		}
		c.logger.Debugf(providers.TypeStorage, "Flushed shard %s", s.Path())
	}
	return errors.Join(errs...)
}

// Len is the number of resident shards.
func (c *ShardCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Years lists the resident years in ascending order.
func (c *ShardCache) Years() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.yearsLocked()
}

func (c *ShardCache) yearsLocked() []int {
	years := make([]int, 0, len(c.entries))
	for y := range c.entries {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

