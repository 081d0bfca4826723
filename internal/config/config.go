package config

import "time"

// Storage drivers accepted in StorageConfig.Driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverDir      = "dir"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds server configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	HTTPAddr           string        `mapstructure:"http_addr" yaml:"http_addr"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	MaxFrameBytes      int           `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	AccessKeyHash      string        `mapstructure:"access_key_hash" yaml:"access_key_hash"`
	Storage            StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// StorageConfig selects and configures the file store backend.
type StorageConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"`
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	Dir           string `mapstructure:"dir" yaml:"dir"`
	PostgresDSN   string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              "0.0.0.0:5000",
		HTTPAddr:          "",
		LogLevel:          "info",
		MaxFrameBytes:     16 << 20,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		Storage: StorageConfig{
			Driver:      DriverMemory,
			SQLitePath:  "wirerelay.db",
			Dir:         "files",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "wirerelay:file:",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Used to apply command-line overrides on top of the loaded file.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.MaxFrameBytes != 0 {
		c.MaxFrameBytes = other.MaxFrameBytes
	}
	if other.ReadTimeout != 0 {
		c.ReadTimeout = other.ReadTimeout
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.Storage.Driver != "" {
		c.Storage.Driver = other.Storage.Driver
	}
}
