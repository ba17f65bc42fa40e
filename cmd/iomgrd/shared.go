package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/siodb/iomgr/internal/catalog"
	"github.com/siodb/iomgr/internal/config"
	"github.com/siodb/iomgr/internal/instance"
	"github.com/siodb/iomgr/internal/logging"
)

// loadConfig resolves config.toml the way every subcommand needs it
// resolved, exiting the process on failure since there is nothing a
// subcommand can do without it.
func loadConfig() config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return logging.New(logging.Options{Level: level, Dir: cfg.LogDir})
}

// openInstance opens (creating if necessary) the instance described by
// cfg, for subcommands that need the full database/table registry rather
// than just the catalog.
func openInstance(cfg config.Config) (*instance.Instance, error) {
	return instance.Open(instance.Options{
		DataDirectory:         cfg.DataDirectory,
		DefaultCipherID:       cfg.DefaultCipherID,
		DatabaseCacheCapacity: cfg.DatabaseCacheCapacity,
		TableCacheCapacity:    cfg.TableCacheCapacity,
	})
}

// openCatalog opens the instance-wide system catalog, bootstrapping it on
// first use (spec §4.9: "Create database" runs once per instance for the
// catalog's own eleven system tables).
func openCatalog(inst *instance.Instance) (*catalog.Catalog, error) {
	sysDB, err := inst.SystemDatabase()
	if err != nil {
		return nil, err
	}
	if cat, err := catalog.Open(sysDB); err == nil {
		return cat, nil
	}
	return catalog.Bootstrap(sysDB)
}
