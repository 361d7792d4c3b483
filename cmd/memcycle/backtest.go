package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/memcycle/internal/backtest"
	"github.com/newthinker/memcycle/internal/core"
	"github.com/newthinker/memcycle/internal/logger"
	"github.com/newthinker/memcycle/internal/storage/archive"
)

var (
	backtestTrainStart string
	backtestTestStart  string
	backtestSignals    bool
	backtestArchive    bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest the regime model out of sample",
	Long:  "Fit the model on a training window, predict the held-out test window and report regime and price accuracy",
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestTrainStart, "train-start", "", "training window start YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTestStart, "test-start", "", "test window start YYYY-MM-DD (required)")
	backtestCmd.Flags().BoolVar(&backtestSignals, "signals", false, "also backtest the threshold signal strategy")
	backtestCmd.Flags().BoolVar(&backtestArchive, "archive", false, "archive the backtest report")

	backtestCmd.MarkFlagRequired("train-start")
	backtestCmd.MarkFlagRequired("test-start")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	trainStart, err := time.Parse("2006-01-02", backtestTrainStart)
	if err != nil {
		return fmt.Errorf("invalid train-start date (expected YYYY-MM-DD): %w", err)
	}
	testStart, err := time.Parse("2006-01-02", backtestTestStart)
	if err != nil {
		return fmt.Errorf("invalid test-start date (expected YYYY-MM-DD): %w", err)
	}
	if !trainStart.Before(testStart) {
		return fmt.Errorf("test-start must be after train-start")
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	_, obs, labels, err := loadTables(cfg)
	if err != nil {
		return err
	}

	b := backtest.New(cfg.Model.UtilizationTarget, cfg.Model.InventoryTargetWeeks,
		cfg.Backtest.MinTrainPeriods)
	result, err := b.Run(obs, labels, trainStart, testStart)
	if err != nil {
		return err
	}

	fmt.Println("=== Regime Model Backtest ===")
	fmt.Printf("Train: %s to %s (%d quarters)\n",
		result.TrainStart.Format("2006-01-02"), result.TrainEnd.Format("2006-01-02"), result.TrainPeriods)
	fmt.Printf("Test:  %s to %s (%d quarters)\n",
		result.TestStart.Format("2006-01-02"), result.TestEnd.Format("2006-01-02"), result.TestPeriods)
	fmt.Println()

	printMetric := func(name string, v *float64, pct bool) {
		if v == nil {
			fmt.Printf("%-20s n/a\n", name)
			return
		}
		if pct {
			fmt.Printf("%-20s %.1f%%\n", name, *v*100)
			return
		}
		fmt.Printf("%-20s %.3f\n", name, *v)
	}
	printMetric("Regime accuracy:", result.Metrics.RegimeAccuracy, true)
	printMetric("  glut:", result.Metrics.AccuracyGlut, true)
	printMetric("  balanced:", result.Metrics.AccuracyBalanced, true)
	printMetric("  tight:", result.Metrics.AccuracyTight, true)
	printMetric("Direction accuracy:", result.Metrics.DirectionAccuracy, true)
	printMetric("Price RMSE:", result.Metrics.PriceRMSE, false)

	payload := map[string]any{
		"train_periods": result.TrainPeriods,
		"test_periods":  result.TestPeriods,
		"metrics":       result.Metrics,
	}

	if backtestSignals {
		var test []core.Observation
		for _, o := range obs {
			if !o.Date.Before(testStart) {
				test = append(test, o)
			}
		}
		sig, err := b.SignalBacktest(test, result.Predictions, backtest.SignalParams{
			BuyThreshold:   cfg.Signal.BuyThreshold,
			SellThreshold:  cfg.Signal.SellThreshold,
			AnnualRiskFree: cfg.Backtest.AnnualRiskFree,
		})
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Println("=== Signal Strategy vs Buy & Hold ===")
		fmt.Printf("%-20s %+.1f%%  (buy & hold %+.1f%%)\n", "Total return:", sig.TotalReturn, sig.BuyHoldReturn)
		fmt.Printf("%-20s %.2f  (buy & hold %.2f)\n", "Sharpe ratio:", sig.SharpeRatio, sig.BuyHoldSharpe)
		fmt.Printf("%-20s %.1f%%  (buy & hold %.1f%%)\n", "Max drawdown:", sig.MaxDrawdown, sig.BuyHoldMaxDrawdown)
		fmt.Printf("%-20s %d\n", "Trades:", sig.Trades)

		payload["signals"] = sig
	}

	if backtestArchive {
		backend, err := openArchive(cfg)
		if err != nil {
			return err
		}
		id, err := archive.NewWriter(backend).Save(cmd.Context(), "backtest", payload)
		if err != nil {
			return err
		}
		log.Info("backtest archived", zap.String("run_id", id))
		fmt.Printf("\nArchived as run %s\n", id)
	}

	return nil
}
