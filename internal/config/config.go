// Package config loads and validates the engine configuration from YAML
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/newthinker/memcycle/internal/core"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Model    ModelConfig    `mapstructure:"model"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Signal   SignalConfig   `mapstructure:"signal"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	DataDir string        `mapstructure:"data_dir"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// ModelConfig holds regime model parameters. UtilizationTarget and
// InventoryTargetWeeks are the equilibrium anchors the gap features are
// measured against.
type ModelConfig struct {
	UtilizationTarget    float64 `mapstructure:"utilization_target"`
	InventoryTargetWeeks float64 `mapstructure:"inventory_target_weeks"`
	MomentumLookback     int     `mapstructure:"momentum_lookback"`
}

type ForecastConfig struct {
	HorizonQuarters int     `mapstructure:"horizon_quarters"`
	Simulations     int     `mapstructure:"simulations"`
	DemandGrowth    float64 `mapstructure:"demand_growth"`
	Seed            int64   `mapstructure:"seed"`
}

type BacktestConfig struct {
	MinTrainPeriods int     `mapstructure:"min_train_periods"`
	AnnualRiskFree  float64 `mapstructure:"annual_risk_free"`
}

type SignalConfig struct {
	BuyThreshold  float64 `mapstructure:"buy_threshold"`
	SellThreshold float64 `mapstructure:"sell_threshold"`
	RiskTolerance float64 `mapstructure:"risk_tolerance"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			DataDir: "data",
			Archive: ArchiveConfig{
				Type: "localfs",
				Path: "archive",
			},
		},
		Model: ModelConfig{
			UtilizationTarget:    0.85,
			InventoryTargetWeeks: 12.0,
			MomentumLookback:     3,
		},
		Forecast: ForecastConfig{
			HorizonQuarters: 4,
			Simulations:     1000,
			DemandGrowth:    0.02,
			Seed:            42,
		},
		Backtest: BacktestConfig{
			MinTrainPeriods: 20,
			AnnualRiskFree:  0.0,
		},
		Signal: SignalConfig{
			BuyThreshold:  0.6,
			SellThreshold: 0.6,
			RiskTolerance: 0.5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Model.UtilizationTarget <= 0 || c.Model.UtilizationTarget > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("utilization_target must be in (0, 1], got %f", c.Model.UtilizationTarget))
	}
	if c.Model.InventoryTargetWeeks <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("inventory_target_weeks must be positive, got %f", c.Model.InventoryTargetWeeks))
	}
	if c.Model.MomentumLookback < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("momentum_lookback must be at least 1, got %d", c.Model.MomentumLookback))
	}

	if c.Forecast.HorizonQuarters < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("horizon_quarters cannot be negative, got %d", c.Forecast.HorizonQuarters))
	}
	if c.Forecast.Simulations < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("simulations must be at least 1, got %d", c.Forecast.Simulations))
	}

	if c.Backtest.MinTrainPeriods < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_train_periods must be at least 1, got %d", c.Backtest.MinTrainPeriods))
	}

	if c.Signal.BuyThreshold <= 0 || c.Signal.BuyThreshold >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("buy_threshold must be in (0, 1), got %f", c.Signal.BuyThreshold))
	}
	if c.Signal.SellThreshold <= 0 || c.Signal.SellThreshold >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sell_threshold must be in (0, 1), got %f", c.Signal.SellThreshold))
	}
	if c.Signal.RiskTolerance < 0 || c.Signal.RiskTolerance > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("risk_tolerance must be between 0 and 1, got %f", c.Signal.RiskTolerance))
	}

	switch c.Storage.Archive.Type {
	case "localfs":
		if c.Storage.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive path required when type is localfs"))
		}
	case "s3":
		if c.Storage.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when archive type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.Storage.Archive.Type))
	}

	return nil
}
