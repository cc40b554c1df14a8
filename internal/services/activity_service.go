package services

import (
	"chatstat/internal/models"
	"chatstat/internal/providers"
	"chatstat/internal/statistic"
	"chatstat/internal/statistic/interfaces"
	"chatstat/internal/structures"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type ActivityServiceInterface interface {
	UpdateUsers(community string, batch []models.UserUpdate) error
	CollectData(community string, start, end models.EpochDay) ([]*models.User, error)
	Generation(community string) uint64
	Clock() *models.Clock

	SetCursor(communityID, channelID uint64, value float64)
	Cursor(communityID, channelID uint64) (float64, bool)
	ClearCursors()

	SetColor(userID uint64, color string) error
	Colors(users []*models.User) []statistic.UserColor

	Persist() error
	Restore() error
	OpenShards() int
	Communities() []string
	Close()
}

// ActivityService owns one Database per community under the data directory,
// the shared cursor cache and the color store.
type ActivityService struct {
	mu         sync.RWMutex
	conf       *structures.Config
	clock      *models.Clock
	compressor interfaces.CompressorInterface
	logger     providers.Logger
	metrics    providers.MetricsProviderInterface
	databases  map[string]*Database
	cursors    *statistic.CursorCache
	colors     *statistic.ColorStore
}

func (as *ActivityService) lookup(community string) (*Database, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	db, ok := as.databases[community]
	return db, ok
}

// database returns the open Database of community, opening it on first use.
func (as *ActivityService) database(community string) (*Database, error) {
	if db, ok := as.lookup(community); ok {
		return db, nil
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	if db, ok := as.databases[community]; ok {
		return db, nil
	}
	db, err := NewDatabase(DatabaseOptions{
		Directory:     as.conf.Storage.DataDir,
		Community:     community,
		Clock:         as.clock,
		Compressor:    as.compressor,
		MaxOpenShards: as.conf.Storage.MaxOpenShards,
		Logger:        as.logger,
		Metrics:       as.metrics,
	})
	if err != nil {
		return nil, err
	}
	as.databases[community] = db
	as.logger.Infof(providers.TypeStorage, "Opened database for community %s", community)
	return db, nil
}

func (as *ActivityService) UpdateUsers(community string, batch []models.UserUpdate) error {
	db, err := as.database(community)
	if err != nil {
		return err
	}
	return db.UpdateUsers(batch)
}

// CollectData only opens a Database when the community already exists in memory
// or on disk. Queries for unknown communities are answered empty.
func (as *ActivityService) CollectData(community string, start, end models.EpochDay) ([]*models.User, error) {
	if start > end {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, start, end)
	}
	db, ok := as.lookup(community)
	if !ok {
		if err := statistic.ValidateCommunity(community); err != nil {
			return nil, err
		}
		info, err := os.Stat(filepath.Join(as.conf.Storage.DataDir, community))
		if errors.Is(err, os.ErrNotExist) {
			return []*models.User{}, nil
		}
		if err != nil {
			return nil, models.NewStorageError(models.ErrIo, "stat community", community, err)
		}
		if !info.IsDir() {
			return []*models.User{}, nil
		}
		if db, err = as.database(community); err != nil {
			return nil, err
		}
	}
	return db.CollectData(start, end)
}

// Generation is zero for a community that was never opened.
func (as *ActivityService) Generation(community string) uint64 {
	as.mu.RLock()
	defer as.mu.RUnlock()
	if db, ok := as.databases[community]; ok {
		return db.Generation()
	}
	return 0
}

func (as *ActivityService) Clock() *models.Clock {
	return as.clock
}

func (as *ActivityService) SetCursor(communityID, channelID uint64, value float64) {
	as.cursors.SetPointer(communityID, channelID, value)
}

func (as *ActivityService) Cursor(communityID, channelID uint64) (float64, bool) {
	return as.cursors.Pointer(communityID, channelID)
}

func (as *ActivityService) ClearCursors() {
	as.cursors.Clear()
	as.logger.Warnf(providers.TypeStorage, "Cursor cache cleared")
}

func (as *ActivityService) SetColor(userID uint64, color string) error {
	return as.colors.Set(userID, color)
}

func (as *ActivityService) Colors(users []*models.User) []statistic.UserColor {
	return as.colors.Colors(users)
}

// Persist flushes dirty shards of every community, then the cursor and color files.
func (as *ActivityService) Persist() error {
	as.mu.RLock()
	dbs := make([]*Database, 0, len(as.databases))
	for _, db := range as.databases {
		dbs = append(dbs, db)
	}
	as.mu.RUnlock()

	var errs []error
	for _, db := range dbs {
		if err := db.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	if as.cursors.Dirty() {
		if err := as.cursors.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	if as.colors.Dirty() {
		if err := as.colors.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Restore reloads the cursor cache and opens a database for every community
// directory found under the data directory.
func (as *ActivityService) Restore() error {
	if err := as.cursors.Reload(); err != nil {
		return err
	}

	entries, err := os.ReadDir(as.conf.Storage.DataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return models.NewStorageError(models.ErrIo, "scan data dir", as.conf.Storage.DataDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() || statistic.ValidateCommunity(e.Name()) != nil {
			continue
		}
		if _, err := as.database(e.Name()); err != nil {
			return err
		}
	}
	as.logger.Infof(providers.TypeApp, "Restored %d communities from %s", len(as.Communities()), as.conf.Storage.DataDir)
	return nil
}

func (as *ActivityService) OpenShards() int {
	as.mu.RLock()
	defer as.mu.RUnlock()
	n := 0
	for _, db := range as.databases {
		n += db.OpenShards()
	}
	return n
}

func (as *ActivityService) Communities() []string {
	as.mu.RLock()
	defer as.mu.RUnlock()
	names := make([]string, 0, len(as.databases))
	for name := range as.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (as *ActivityService) Close() {
	as.compressor.Close()
}

func NewActivityService(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) (ActivityServiceInterface, error) {
	epoch, err := providers.ParseEpoch(conf)
	if err != nil {
		return nil, err
	}
	if err := statistic.ValidateRoot(conf.Storage.DataDir); err != nil {
		return nil, err
	}
	compressor, err := statistic.NewShardCompressor(conf.Storage.Compress)
	if err != nil {
		return nil, err
	}
	cursorFile := conf.Storage.CursorFile
	if cursorFile == "" {
		cursorFile = statistic.CursorFilePath(conf.Storage.DataDir)
	}
	cursors, err := statistic.LoadCursorCache(cursorFile, logger)
	if err != nil {
		return nil, err
	}
	colors, err := statistic.LoadColorStore(statistic.ColorFilePath(conf.Storage.DataDir))
	if err != nil {
		return nil, err
	}

	return &ActivityService{
		conf:       conf,
		clock:      models.NewClock(epoch),
		compressor: compressor,
		logger:     logger,
		metrics:    metrics,
		databases:  make(map[string]*Database),
		cursors:    cursors,
		colors:     colors,
	}, nil
}

// NewPersister exposes the service to the scheduler.
func NewPersister(service ActivityServiceInterface) interfaces.PersisterInterface {
	return service
}
