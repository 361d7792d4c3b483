package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/memcycle/internal/config"
	"github.com/newthinker/memcycle/internal/core"
	"github.com/newthinker/memcycle/internal/regime"
	"github.com/newthinker/memcycle/internal/storage/archive"
	"github.com/newthinker/memcycle/internal/storage/table"
)

// loadConfig loads and validates the config file, falling back to defaults
// when no file is given.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadTables opens the observation store and reads both tables.
func loadTables(cfg *config.Config) (*table.Store, []core.Observation, []core.RegimeLabel, error) {
	store, err := table.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, nil, err
	}
	obs, err := store.LoadObservations()
	if err != nil {
		return nil, nil, nil, err
	}
	labels, err := store.LoadLabels()
	if err != nil {
		return nil, nil, nil, err
	}
	return store, obs, labels, nil
}

// openArchive creates the configured archive backend.
func openArchive(cfg *config.Config) (archive.Backend, error) {
	switch cfg.Storage.Archive.Type {
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.Storage.Archive.S3.Bucket,
			Endpoint:  cfg.Storage.Archive.S3.Endpoint,
			Region:    cfg.Storage.Archive.S3.Region,
			AccessKey: cfg.Storage.Archive.S3.AccessKey,
			SecretKey: cfg.Storage.Archive.S3.SecretKey,
			Prefix:    cfg.Storage.Archive.S3.Prefix,
		})
	default:
		return archive.NewLocalFS(cfg.Storage.Archive.Path)
	}
}

// fitModel fits a fresh regime model on the stored tables.
func fitModel(cfg *config.Config, obs []core.Observation, labels []core.RegimeLabel) (*regime.Model, error) {
	model := regime.New(cfg.Model.UtilizationTarget, cfg.Model.InventoryTargetWeeks)
	if err := model.Fit(obs, labels); err != nil {
		return nil, fmt.Errorf("fitting regime model: %w", err)
	}
	return model, nil
}
