package statistic

import (
	"chatstat/internal/models"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

const ColorFileName = "colors.json"

var ErrInvalidColor = errors.New("color must be 6 hexadecimal digits")

// UserColor pairs a user record with its chart color.
type UserColor struct {
	User  *models.User `json:"user"`
	Color string       `json:"color"`
}

// ColorStore is the per-database-root mapping of user id to a 6 digit hex color.
type ColorStore struct {
	mu    sync.RWMutex
	path  string
	data  map[string]string
	dirty bool
}

func ColorFilePath(root string) string {
	return filepath.Join(root, ColorFileName)
}

func LoadColorStore(path string) (*ColorStore, error) {
	cs := &ColorStore{path: path, data: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cs, nil
		}
		return nil, models.NewStorageError(models.ErrIo, "load colors", path, err)
	}
	if err := json.Unmarshal(data, &cs.data); err != nil {
		return nil, models.NewStorageError(models.ErrParse, "parse colors", path, err)
	}
	if cs.data == nil {
		cs.data = make(map[string]string)
	}
	return cs, nil
}

func (cs *ColorStore) Get(userID uint64) (string, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.data[strconv.FormatUint(userID, 10)]
	return c, ok
}

// Set stores color for userID. A leading '#' is dropped; the rest must be 6 hex digits.
func (cs *ColorStore) Set(userID uint64, color string) error {
	color = strings.ToLower(strings.TrimPrefix(color, "#"))
	if !isHexColor(color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.data[strconv.FormatUint(userID, 10)] = color
	cs.dirty = true
	return nil
}

// Colors pairs each user with its stored color. Users without one are left out.
func (cs *ColorStore) Colors(users []*models.User) []UserColor {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]UserColor, 0, len(users))
	for _, u := range users {
		if c, ok := cs.data[strconv.FormatUint(u.ID, 10)]; ok {
			out = append(out, UserColor{User: u, Color: c})
		}
	}
	return out
}

func (cs *ColorStore) Dirty() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.dirty
}

func (cs *ColorStore) Flush() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	data, err := json.Marshal(cs.data)
	if err != nil {
		return models.NewStorageError(models.ErrSerialize, "encode colors", cs.path, err)
	}
	if err := writeFileAtomic(cs.path, data); err != nil {
		return models.NewStorageError(models.ErrIo, "write colors", cs.path, err)
	}
	cs.dirty = false
	return nil
}

func isHexColor(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
