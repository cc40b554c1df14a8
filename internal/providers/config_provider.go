package providers

import (
	"chatstat/internal/models"
	"chatstat/internal/structures"
	"fmt"
	"github.com/spf13/viper"
	"path/filepath"
	"strings"
	"time"
)

const defaultCursorFile = "cursors.json"

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	v.SetDefault("storage.epoch", "2025-05-14T00:00:00Z")
	v.SetDefault("storage.saveInterval", 30*time.Second)
	v.SetDefault("storage.lock", true)
	v.SetDefault("cache.ttl", time.Minute)

	v.BindEnv("logger.level", "CHATSTAT_LOG_LEVEL")
	v.BindEnv("storage.dataDir", "CHATSTAT_DATA_DIR")
	v.BindEnv("storage.saveInterval", "CHATSTAT_SAVE_INTERVAL")
	v.BindEnv("cache.enabled", "CHATSTAT_CACHE_ENABLED")
	v.BindEnv("cache.size", "CHATSTAT_CACHE_SIZE")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if conf.Storage.CursorFile == "" {
		conf.Storage.CursorFile = filepath.Join(conf.Storage.DataDir, defaultCursorFile)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "ChatStat"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}

// ParseEpoch reads the configured reference instant, falling back to the default epoch.
func ParseEpoch(conf *structures.Config) (time.Time, error) {
	t, err := models.ParseReference(conf.Storage.Epoch)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid storage.epoch %q: %w", conf.Storage.Epoch, err)
	}
	return t, nil
}
