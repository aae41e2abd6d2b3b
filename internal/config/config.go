package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all keepsake configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Memory  MemoryConfig  `mapstructure:"memory"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "sqlite" or "json"
	Root    string `mapstructure:"root"`    // storage root, default ~/.keepsake
}

type MemoryConfig struct {
	HalfLifeDays     float64 `mapstructure:"half_life_days"`
	MaxInjected      int     `mapstructure:"max_injected"`
	MinConfidence    float64 `mapstructure:"min_confidence"`
	MaxContextLength int     `mapstructure:"max_context_length"`
	PatternThreshold float64 `mapstructure:"pattern_threshold"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"` // debug, info, warn, error
	Development bool   `mapstructure:"development"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37707,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Root:    "", // resolved at runtime via store.DefaultRoot()
		},
		Memory: MemoryConfig{
			HalfLifeDays:     30,
			MaxInjected:      10,
			MinConfidence:    0.3,
			MaxContextLength: 2000,
			PatternThreshold: 0.7,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads ~/.keepsake/config.yaml when present and applies KEEPSAKE_*
// environment overrides, e.g. KEEPSAKE_SERVER_PORT=4000 or
// KEEPSAKE_MEMORY_HALF_LIFE_DAYS=14.
func Load() (Config, error) {
	v := viper.New()
	def := Default()

	v.SetDefault("server.bind", def.Server.Bind)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("storage.backend", def.Storage.Backend)
	v.SetDefault("storage.root", def.Storage.Root)
	v.SetDefault("memory.half_life_days", def.Memory.HalfLifeDays)
	v.SetDefault("memory.max_injected", def.Memory.MaxInjected)
	v.SetDefault("memory.min_confidence", def.Memory.MinConfidence)
	v.SetDefault("memory.max_context_length", def.Memory.MaxContextLength)
	v.SetDefault("memory.pattern_threshold", def.Memory.PatternThreshold)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.development", def.Logging.Development)

	v.SetEnvPrefix("KEEPSAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(home, ".keepsake"))
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
