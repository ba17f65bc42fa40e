package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siodb/iomgr/internal/daemon"
	"github.com/siodb/iomgr/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storage core as a daemon, accepting client connections",
	Long: `serve opens the instance's data directory, bootstraps or reopens its
system catalog, and accepts client connections on the configured listen
address until interrupted (spec §5: one worker goroutine per connection,
a periodic dead-connection reaper).`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	log := newLogger(cfg)

	inst, err := openInstance(cfg)
	if err != nil {
		return fmt.Errorf("opening instance: %w", err)
	}
	defer inst.Close()

	if _, err := openCatalog(inst); err != nil {
		return fmt.Errorf("opening system catalog: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddress, err)
	}
	log.Info("listening", "address", cfg.ListenAddress)

	handler := engine.NewHandler(inst, log)
	srv := daemon.NewServer(listener, handler, log, cfg.DeadConnectionReapInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info("shutting down")
	return nil
}
