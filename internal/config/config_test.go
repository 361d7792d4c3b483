package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/newthinker/memcycle/internal/core"
)

func TestLoad_FromFile(t *testing.T) {
	content := []byte(`
server:
  host: "127.0.0.1"
  port: 9090

model:
  utilization_target: 0.87
  inventory_target_weeks: 11

storage:
  data_dir: "/tmp/memcycle/data"
  archive:
    type: localfs
    path: "/tmp/memcycle/archive"
`)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Model.UtilizationTarget != 0.87 {
		t.Errorf("expected utilization_target 0.87, got %f", cfg.Model.UtilizationTarget)
	}
	// Fields absent from the file fall back to defaults.
	if cfg.Forecast.Simulations != 1000 {
		t.Errorf("expected default simulations 1000, got %d", cfg.Forecast.Simulations)
	}
	if cfg.Signal.BuyThreshold != 0.6 {
		t.Errorf("expected default buy_threshold 0.6, got %f", cfg.Signal.BuyThreshold)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Model.UtilizationTarget != 0.85 {
		t.Errorf("expected default utilization target 0.85, got %f", cfg.Model.UtilizationTarget)
	}
	if cfg.Model.InventoryTargetWeeks != 12.0 {
		t.Errorf("expected default inventory target 12, got %f", cfg.Model.InventoryTargetWeeks)
	}
	if cfg.Backtest.MinTrainPeriods != 20 {
		t.Errorf("expected default min_train_periods 20, got %d", cfg.Backtest.MinTrainPeriods)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"utilization target above 1", func(c *Config) { c.Model.UtilizationTarget = 1.5 }},
		{"negative inventory target", func(c *Config) { c.Model.InventoryTargetWeeks = -1 }},
		{"zero simulations", func(c *Config) { c.Forecast.Simulations = 0 }},
		{"zero min train periods", func(c *Config) { c.Backtest.MinTrainPeriods = 0 }},
		{"buy threshold at 1", func(c *Config) { c.Signal.BuyThreshold = 1.0 }},
		{"risk tolerance above 1", func(c *Config) { c.Signal.RiskTolerance = 1.5 }},
		{"unknown archive type", func(c *Config) { c.Storage.Archive.Type = "ftp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("expected CONFIG_INVALID, got %v", err)
			}
		})
	}
}

func TestValidate_MissingS3Bucket(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Archive.Type = "s3"

	if err := cfg.Validate(); !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("expected CONFIG_MISSING for empty s3 bucket, got %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("MEMCYCLE_TEST_BUCKET", "cycle-archive")

	content := []byte(`
storage:
  archive:
    type: s3
    s3:
      bucket: "${MEMCYCLE_TEST_BUCKET}"
      region: "us-east-1"
`)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Storage.Archive.S3.Bucket != "cycle-archive" {
		t.Errorf("expected env-expanded bucket, got %q", cfg.Storage.Archive.S3.Bucket)
	}
}
