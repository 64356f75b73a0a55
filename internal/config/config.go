// Package config loads server configuration from a YAML file with
// environment-variable overrides, backed by viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	BroadcastBuffer int           `mapstructure:"broadcast_buffer"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the postgres pool.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CatalogConfig configures the card-catalog ingest.
type CatalogConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Sets         []string      `mapstructure:"sets"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
}

// StorageConfig configures the on-disk data directory used for card
// images and player uploads.
type StorageConfig struct {
	DataDir        string `mapstructure:"data_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// Load reads the configuration file at path. Environment variables
// prefixed with GAMETABLE_ override file values (GAMETABLE_SERVER_ADDRESS
// overrides server.address). A missing file is not an error; defaults and
// environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("server.address", ":3001")
	v.SetDefault("server.broadcast_buffer", 64)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.url", "postgres://localhost:5432/gametable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("catalog.base_url", "https://api.scryfall.com")
	v.SetDefault("catalog.request_delay", 75*time.Millisecond)
	v.SetDefault("storage.data_dir", "/GameTableData")
	v.SetDefault("storage.max_upload_bytes", int64(25*1024*1024))

	v.SetEnvPrefix("GAMETABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine (defaults plus environment apply); a
		// file that exists but does not parse is not.
		if _, ok := err.(viper.ConfigParseError); ok {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
