// Package config loads instance configuration the way the teacher's own
// CLI loads its config.yaml: an explicit/discovered file read through
// viper, with environment variables layered on top and sane built-in
// defaults underneath. Here the on-disk format is TOML and the schema is
// the storage engine's own (spec §5, §6, SPEC_FULL.md §A.3).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config is the fully resolved instance configuration.
type Config struct {
	DataDirectory string `toml:"data_directory"`

	DefaultCipherID        string `toml:"default_cipher_id"`
	DefaultDataFileSize    int64  `toml:"default_data_file_size"`
	DefaultIndexFileSize   int64  `toml:"default_index_file_size"`

	TableCacheCapacity           int `toml:"table_cache_capacity"`
	ColumnSetCacheCapacity       int `toml:"column_set_cache_capacity"`
	ConstraintDefCacheCapacity   int `toml:"constraint_def_cache_capacity"`
	DatabaseCacheCapacity        int `toml:"database_cache_capacity"`

	DeadConnectionReapInterval time.Duration `toml:"dead_connection_reap_interval"`

	ListenAddress string `toml:"listen_address"`

	LogLevel string `toml:"log_level"`
	LogDir   string `toml:"log_dir"`
}

const envPrefix = "SIODB"

var v *viper.Viper

// Load resolves the instance configuration, trying in order: an
// explicitly given path, $SIODB_HOME/config.toml, the user config
// directory's siodb/config.toml (~/.config/siodb on Linux),
// ~/.siodb/config.toml, then falling back entirely to defaults and
// environment overrides (spec
// §5 "instance configuration file", mirroring the teacher's config.yaml
// discovery order).
func Load(explicitPath string) (Config, error) {
	v = viper.New()
	v.SetConfigType("toml")

	resolved := explicitPath
	if resolved == "" {
		resolved = discoverConfigFile()
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if resolved != "" {
		if _, err := os.Stat(resolved); err == nil {
			raw, err := os.ReadFile(resolved)
			if err != nil {
				return Config{}, fmt.Errorf("reading config file %s: %w", resolved, err)
			}
			var fileCfg map[string]any
			if _, err := toml.Decode(string(raw), &fileCfg); err != nil {
				return Config{}, fmt.Errorf("parsing config file %s: %w", resolved, err)
			}
			if err := v.MergeConfigMap(fileCfg); err != nil {
				return Config{}, fmt.Errorf("merging config file %s: %w", resolved, err)
			}
		}
	}

	return Config{
		DataDirectory: v.GetString("data_directory"),

		DefaultCipherID:      v.GetString("default_cipher_id"),
		DefaultDataFileSize:  v.GetInt64("default_data_file_size"),
		DefaultIndexFileSize: v.GetInt64("default_index_file_size"),

		TableCacheCapacity:         v.GetInt("table_cache_capacity"),
		ColumnSetCacheCapacity:     v.GetInt("column_set_cache_capacity"),
		ConstraintDefCacheCapacity: v.GetInt("constraint_def_cache_capacity"),
		DatabaseCacheCapacity:      v.GetInt("database_cache_capacity"),

		DeadConnectionReapInterval: v.GetDuration("dead_connection_reap_interval"),

		ListenAddress: v.GetString("listen_address"),

		LogLevel: v.GetString("log_level"),
		LogDir:   v.GetString("log_dir"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_directory", "/var/lib/iomgrd")
	v.SetDefault("default_cipher_id", "aes128")
	v.SetDefault("default_data_file_size", int64(4<<20))
	v.SetDefault("default_index_file_size", int64(64<<20))
	v.SetDefault("table_cache_capacity", 100)
	v.SetDefault("column_set_cache_capacity", 100)
	v.SetDefault("constraint_def_cache_capacity", 200)
	v.SetDefault("database_cache_capacity", 20)
	v.SetDefault("dead_connection_reap_interval", "30s")
	v.SetDefault("listen_address", "127.0.0.1:50000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "/var/log/iomgrd")
}

func discoverConfigFile() string {
	if dir := os.Getenv("SIODB_HOME"); dir != "" {
		p := filepath.Join(dir, "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(configDir, "siodb", "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".siodb", "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
