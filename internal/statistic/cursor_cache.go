package statistic

import (
	"chatstat/internal/models"
	"chatstat/internal/providers"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
)

const CursorFileName = "cursors.json"

func CursorFilePath(root string) string {
	return filepath.Join(root, CursorFileName)
}

// CursorCache maps community id -> channel id -> last scanned position, so an
// ingestion process can resume without rescanning history.
type CursorCache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]map[string]float64
	dirty   bool
	logger  providers.Logger
}

func NewCursorCache(path string, logger providers.Logger) *CursorCache {
	return &CursorCache{
		path:    path,
		entries: make(map[string]map[string]float64),
		logger:  logger,
	}
}

// LoadCursorCache reads path, starting empty when the file does not exist.
func LoadCursorCache(path string, logger providers.Logger) (*CursorCache, error) {
	cc := NewCursorCache(path, logger)
	if err := cc.Reload(); err != nil {
		return nil, err
	}
	return cc, nil
}

// Reload replaces the in-memory entries with the file contents.
func (cc *CursorCache) Reload() error {
	data, err := os.ReadFile(cc.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return models.NewStorageError(models.ErrIo, "load cursors", cc.path, err)
	}

	entries := make(map[string]map[string]float64)
	if err := json.Unmarshal(data, &entries); err != nil {
		return models.NewStorageError(models.ErrParse, "parse cursors", cc.path, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	for id, channels := range entries {
		if channels == nil {
			entries[id] = make(map[string]float64)
		}
	}
	cc.entries = entries
	cc.dirty = false
	return nil
}

func (cc *CursorCache) Flush() error {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	data, err := json.Marshal(cc.entries)
	if err != nil {
		return models.NewStorageError(models.ErrSerialize, "encode cursors", cc.path, err)
	}
	if err := writeFileAtomic(cc.path, data); err != nil {
		return models.NewStorageError(models.ErrIo, "write cursors", cc.path, err)
	}
	cc.dirty = false
	return nil
}

func (cc *CursorCache) Path() string {
	return cc.path
}

func (cc *CursorCache) Dirty() bool {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.dirty
}

// SetPointer inserts or updates the cursor of a channel. A first insert for a
// channel is logged, since it means the channel was never scanned before.
func (cc *CursorCache) SetPointer(communityID, channelID uint64, value float64) {
	community := strconv.FormatUint(communityID, 10)
	channel := strconv.FormatUint(channelID, 10)

	cc.mu.Lock()
	defer cc.mu.Unlock()

	channels, ok := cc.entries[community]
	if !ok {
		channels = make(map[string]float64)
		cc.entries[community] = channels
	}
	if _, seen := channels[channel]; !seen {
		cc.logger.Infof(providers.TypeStorage, "New cursor for community %s channel %s at %f", community, channel, value)
	}
	channels[channel] = value
	cc.dirty = true
}

func (cc *CursorCache) Pointer(communityID, channelID uint64) (float64, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	channels, ok := cc.entries[strconv.FormatUint(communityID, 10)]
	if !ok {
		return 0, false
	}
	v, ok := channels[strconv.FormatUint(channelID, 10)]
	return v, ok
}

// Entries returns a copy of the whole mapping.
func (cc *CursorCache) Entries() map[string]map[string]float64 {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	out := make(map[string]map[string]float64, len(cc.entries))
	for id, channels := range cc.entries {
		cp := make(map[string]float64, len(channels))
		for ch, v := range channels {
			cp[ch] = v
		}
		out[id] = cp
	}
	return out
}

func (cc *CursorCache) Clear() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.entries = make(map[string]map[string]float64)
	cc.dirty = true
}
