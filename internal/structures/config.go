package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type StorageConfig struct {
	DataDir string `yaml:"dataDir" validate:"required|unixPath"`
	// Epoch is the RFC3339 reference instant of epoch day 0.
	Epoch         string        `yaml:"epoch"`
	Compress      bool          `yaml:"compress"`
	MaxOpenShards int           `yaml:"maxOpenShards"`
	SaveInterval  time.Duration `yaml:"saveInterval" validate:"required|min:1"`
	CursorFile    string        `yaml:"cursorFile"`
	Lock          bool          `yaml:"lock"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	Storage   StorageConfig `yaml:"storage"`
	WebServer Server        `yaml:"webServer"`
	Logger    LoggerConfig  `yaml:"logger"`
	Cache     CacheConfig   `yaml:"cache"`
	Metrics   MetricsConfig `yaml:"metrics"`
}
