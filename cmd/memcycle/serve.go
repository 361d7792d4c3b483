package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/memcycle/internal/api"
	"github.com/newthinker/memcycle/internal/logger"
	"github.com/newthinker/memcycle/internal/metrics"
	"github.com/newthinker/memcycle/internal/storage/table"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the memcycle API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	store, err := table.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return err
	}

	log.Info("starting memcycle server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	server := api.NewServer(cfg, store, metrics.NewRegistry(), log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down memcycle server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
