package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/memcycle/internal/forecast"
	"github.com/newthinker/memcycle/internal/logger"
	"github.com/newthinker/memcycle/internal/storage/archive"
)

var (
	forecastHorizon int
	forecastSims    int
	forecastSeed    int64
	forecastArchive bool
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast DRAM contract prices",
	Long:  "Run a Monte Carlo price simulation from the latest stored quarter and print the distribution per horizon step",
	RunE:  runForecast,
}

func init() {
	forecastCmd.Flags().IntVar(&forecastHorizon, "horizon", 0, "horizon in quarters (default from config)")
	forecastCmd.Flags().IntVar(&forecastSims, "simulations", 0, "number of Monte Carlo paths (default from config)")
	forecastCmd.Flags().Int64Var(&forecastSeed, "seed", -1, "RNG seed (default from config)")
	forecastCmd.Flags().BoolVar(&forecastArchive, "archive", false, "archive the forecast report")

	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	_, obs, labels, err := loadTables(cfg)
	if err != nil {
		return err
	}
	model, err := fitModel(cfg, obs, labels)
	if err != nil {
		return err
	}

	last := obs[len(obs)-1]
	params := forecast.Params{
		InitialPrice:       last.ContractPriceIndex,
		InitialUtilization: last.Utilization,
		InitialInventory:   last.InventoryWeeks,
		Horizon:            cfg.Forecast.HorizonQuarters,
		Simulations:        cfg.Forecast.Simulations,
		DemandGrowth:       cfg.Forecast.DemandGrowth,
		Seed:               cfg.Forecast.Seed,
	}
	if forecastHorizon > 0 {
		params.Horizon = forecastHorizon
	}
	if forecastSims > 0 {
		params.Simulations = forecastSims
	}
	if forecastSeed >= 0 {
		params.Seed = forecastSeed
	}

	points, err := forecast.New(model).Run(params)
	if err != nil {
		return err
	}

	fmt.Println("=== Price Forecast ===")
	fmt.Printf("From:        %s (index %.1f)\n", last.Date.Format("2006-01-02"), params.InitialPrice)
	fmt.Printf("Horizon:     %d quarters, %d paths\n", params.Horizon, params.Simulations)
	fmt.Println()
	fmt.Println("  Q    P10     P25    Median    P75     P90     Mean")
	for _, p := range points {
		fmt.Printf(" %2d  %6.1f  %6.1f  %6.1f  %6.1f  %6.1f  %6.1f\n",
			p.Horizon, p.P10, p.P25, p.Median, p.P75, p.P90, p.Mean)
	}

	if forecastArchive {
		backend, err := openArchive(cfg)
		if err != nil {
			return err
		}
		id, err := archive.NewWriter(backend).Save(cmd.Context(), "forecast", map[string]any{
			"params": params,
			"points": points,
		})
		if err != nil {
			return err
		}
		log.Info("forecast archived", zap.String("run_id", id))
		fmt.Printf("\nArchived as run %s\n", id)
	}

	return nil
}
