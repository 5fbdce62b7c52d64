package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/transitboard/arrivals"
	"github.com/transitboard/arrivals/config"
	"github.com/transitboard/arrivals/server"
	"github.com/transitboard/arrivals/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the arrivals JSON API",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var configPath string

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	var store storage.Storage
	switch cfg.Storage.Driver {
	case "memory":
		store = storage.NewMemoryStorage()
	case "sqlite":
		store, err = storage.NewSQLiteStorage(storage.SQLiteConfig{
			OnDisk:    cfg.Storage.Directory != "",
			Directory: cfg.Storage.Directory,
		})
	case "postgres":
		store, err = storage.NewPostgresStorage(cfg.Storage.DSN, false)
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return err
	}

	manager := arrivals.NewManager(store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys, err := manager.LoadStatic(ctx, cfg.Static.URL, nil)
	if err != nil {
		return err
	}

	srv := server.New(sys, manager, logger, cfg.Realtime.URL, cfg.Realtime.RefreshInterval.Std())
	return srv.Run(ctx, cfg.Server.Addr)
}
