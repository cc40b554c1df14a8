package statistic

import (
	"chatstat/internal/models"
	"chatstat/internal/statistic/interfaces"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// ShardMeta holds the earliest and latest epoch day with data in a shard.
type ShardMeta struct {
	FirstDay models.EpochDay `json:"first_day"`
	LastDay  models.EpochDay `json:"last_day"`
}

// shardDocument is the on-disk layout of a shard.
type shardDocument struct {
	Users     map[uint64]*models.User `json:"users"`
	Reactions []string                `json:"reactions"`
	Meta      ShardMeta               `json:"meta"`
}

// Shard is one community's activity for one calendar year.
// A Shard is not safe for concurrent use; the owning Database serializes access.
type Shard struct {
	path       string
	users      map[uint64]*models.User
	reactions  []string
	meta       ShardMeta
	bounded    bool
	readOnly   bool
	dirty      bool
	clock      *models.Clock
	compressor interfaces.CompressorInterface
}

func NewShard(path string, clock *models.Clock, compressor interfaces.CompressorInterface) *Shard {
	if compressor == nil {
		compressor = &PlainCompression{}
	}
	return &Shard{
		path:       path,
		users:      make(map[uint64]*models.User),
		reactions:  make([]string, 0),
		clock:      clock,
		compressor: compressor,
	}
}

// LoadShard reads the shard at path. A missing file yields an ErrIo error that also
// matches os.ErrNotExist.
func LoadShard(path string, readOnly bool, clock *models.Clock, compressor interfaces.CompressorInterface) (*Shard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewStorageError(models.ErrIo, "load shard", path, err)
	}

	s := NewShard(path, clock, compressor)
	s.readOnly = readOnly

	decompressed, err := s.compressor.Decompress(data)
	if err != nil {
		return nil, models.NewStorageError(models.ErrParse, "decompress shard", path, err)
	}

	var doc shardDocument
	if err := json.Unmarshal(decompressed, &doc); err != nil {
		return nil, models.NewStorageError(models.ErrParse, "parse shard", path, err)
	}

	if doc.Users != nil {
		s.users = doc.Users
	}
	for id, u := range s.users {
		if u == nil {
			delete(s.users, id)
			continue
		}
		if u.Days == nil {
			u.Days = make(map[models.EpochDay]*models.Day)
		}
	}
	if doc.Reactions != nil {
		s.reactions = doc.Reactions
	}
	s.meta = doc.Meta
	// Bounds set through UpdateLastDay on a shard without user days leave only meta behind.
	s.bounded = s.hasDays() || doc.Meta != (ShardMeta{})
	return s, nil
}

func (s *Shard) hasDays() bool {
	for _, u := range s.users {
		if len(u.Days) > 0 {
			return true
		}
	}
	return false
}

// Flush writes the whole shard to its path.
func (s *Shard) Flush() error {
	if s.readOnly {
		return models.NewStorageError(models.ErrReadOnly, "flush shard", s.path, nil)
	}

	jsonData, err := json.Marshal(s.document())
	if err != nil {
		return models.NewStorageError(models.ErrSerialize, "encode shard", s.path, err)
	}
	data, err := s.compressor.Compress(jsonData)
	if err != nil {
		return models.NewStorageError(models.ErrSerialize, "compress shard", s.path, err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return models.NewStorageError(models.ErrIo, "write shard", s.path, err)
	}
	s.dirty = false
	return nil
}

func (s *Shard) document() *shardDocument {
	return &shardDocument{
		Users:     s.users,
		Reactions: s.reactions,
		Meta:      s.meta,
	}
}

func (s *Shard) Path() string {
	return s.path
}

func (s *Shard) ReadOnly() bool {
	return s.readOnly
}

func (s *Shard) Dirty() bool {
	return s.dirty
}

func (s *Shard) Meta() ShardMeta {
	return s.meta
}

func (s *Shard) Reactions() []string {
	out := make([]string, len(s.reactions))
	copy(out, s.reactions)
	return out
}

// Users exposes the shard's records. Callers outside the owning cache must work on
// an owned copy.
func (s *Shard) Users() map[uint64]*models.User {
	return s.users
}

func (s *Shard) User(id uint64) (*models.User, bool) {
	u, ok := s.users[id]
	return u, ok
}

// Bounds returns the first and last day with data. ok is false for a shard that
// has never recorded a day.
func (s *Shard) Bounds() (first, last models.EpochDay, ok bool) {
	return s.meta.FirstDay, s.meta.LastDay, s.bounded
}

func (s *Shard) GetOrCreateUser(id uint64, name string) *models.User {
	if u, ok := s.users[id]; ok {
		return u
	}
	u := models.NewUser(id, name)
	s.users[id] = u
	s.dirty = true
	return u
}

// UpdateMessageCount records count messages at ts and extends the bounds to ts's day.
func (s *Shard) UpdateMessageCount(userID uint64, name string, ts time.Time, count uint64) error {
	day, hour := s.clock.UnixToEpoch(ts), ts.UTC().Hour()
	if err := s.GetOrCreateUser(userID, name).UpdateMessageCount(s.clock, day, hour, count); err != nil {
		return err
	}
	s.extendBounds(day)
	return nil
}

// UpdateReactionCount records count reactions at ts, adds the reaction to the
// shard vocabulary and extends the bounds to ts's day.
func (s *Shard) UpdateReactionCount(userID uint64, name string, ts time.Time, reaction string, count uint64) error {
	day, hour := s.clock.UnixToEpoch(ts), ts.UTC().Hour()
	if err := s.GetOrCreateUser(userID, name).UpdateReactionCount(s.clock, day, hour, reaction, count); err != nil {
		return err
	}
	s.addReaction(reaction)
	s.extendBounds(day)
	return nil
}

func (s *Shard) addReaction(reaction string) {
	for _, r := range s.reactions {
		if r == reaction {
			return
		}
	}
	s.reactions = append(s.reactions, reaction)
	s.dirty = true
}

func (s *Shard) extendBounds(day models.EpochDay) {
	s.dirty = true
	if !s.bounded {
		s.meta = ShardMeta{FirstDay: day, LastDay: day}
		s.bounded = true
		return
	}
	if day < s.meta.FirstDay {
		s.meta.FirstDay = day
	}
	if day > s.meta.LastDay {
		s.meta.LastDay = day
	}
}

// UpdateLastDay moves last_day forward to day. It never moves it back.
func (s *Shard) UpdateLastDay(day models.EpochDay) {
	if !s.bounded || day > s.meta.LastDay {
		s.extendBounds(day)
	}
}

func (s *Shard) UpdateLastDayNow() {
	s.UpdateLastDay(s.clock.NowEpochDay())
}

// UpdateFirstDay moves first_day back to day. It never moves it forward.
func (s *Shard) UpdateFirstDay(day models.EpochDay) {
	if !s.bounded || day < s.meta.FirstDay {
		s.extendBounds(day)
	}
}

// Clone returns a deep, read-only copy. Flushing the copy fails, so its changes
// can never reach the file of the original.
func (s *Shard) Clone() *Shard {
	cp := &Shard{
		path:       s.path,
		users:      make(map[uint64]*models.User, len(s.users)),
		reactions:  s.Reactions(),
		meta:       s.meta,
		bounded:    s.bounded,
		readOnly:   true,
		clock:      s.clock,
		compressor: s.compressor,
	}
	for id, u := range s.users {
		cp.users[id] = u.Clone()
	}
	return cp
}

// ShardFileName is the canonical shard location relative to the database root:
// <community>/<community>_<year><ext>.
func ShardFileName(community string, year int, ext string) string {
	return filepath.Join(community, community+"_"+strconv.Itoa(year)+ext)
}

func ShardFilePath(root, community string, year int, ext string) string {
	return filepath.Join(root, ShardFileName(community, year, ext))
}

// ValidateCommunity rejects names that would escape or collapse the shard directory.
func ValidateCommunity(community string) error {
	if community == "" || community == "." || community == ".." || strings.ContainsAny(community, `/\`) {
		return models.NewStorageError(models.ErrPath, "community name", community, nil)
	}
	return nil
}

// ValidateRoot checks that a database root has a basename and an existing parent directory.
func ValidateRoot(root string) error {
	if root == "" {
		return models.NewStorageError(models.ErrPath, "database root", root, errors.New("empty path"))
	}
	clean := filepath.Clean(root)
	base := filepath.Base(clean)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return models.NewStorageError(models.ErrPath, "database root", root, errors.New("missing basename"))
	}
	info, err := os.Stat(filepath.Dir(clean))
	if err != nil {
		return models.NewStorageError(models.ErrPath, "database root", root, err)
	}
	if !info.IsDir() {
		return models.NewStorageError(models.ErrPath, "database root", root, errors.New("parent is not a directory"))
	}
	return nil
}
