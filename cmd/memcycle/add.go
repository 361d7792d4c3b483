package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/memcycle/internal/core"
	"github.com/newthinker/memcycle/internal/logger"
	"github.com/newthinker/memcycle/internal/storage/table"
)

var (
	addDate      string
	addUtil      float64
	addInventory float64
	addPrice     float64
	addSpot      float64
	addHBMShare  float64
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a quarterly observation",
	Long:  "Validate a manually entered quarter and merge it into the stored table, replacing any existing row for the same date",
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addDate, "date", "", "quarter end date YYYY-MM-DD (required)")
	addCmd.Flags().Float64Var(&addUtil, "utilization", 0, "fab utilization rate, 0 to 1 (required)")
	addCmd.Flags().Float64Var(&addInventory, "inventory", 0, "supplier inventory in weeks (required)")
	addCmd.Flags().Float64Var(&addPrice, "price", 0, "DRAM contract price index (required)")
	addCmd.Flags().Float64Var(&addSpot, "spot", 0, "DRAM spot index (optional)")
	addCmd.Flags().Float64Var(&addHBMShare, "hbm-share", -1, "HBM revenue share percent (optional)")

	addCmd.MarkFlagRequired("date")
	addCmd.MarkFlagRequired("utilization")
	addCmd.MarkFlagRequired("inventory")
	addCmd.MarkFlagRequired("price")

	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	date, err := time.Parse("2006-01-02", addDate)
	if err != nil {
		return fmt.Errorf("invalid date (expected YYYY-MM-DD): %w", err)
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	store, err := table.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return err
	}

	obs := core.Observation{
		Date:               date,
		Utilization:        addUtil,
		InventoryWeeks:     addInventory,
		ContractPriceIndex: addPrice,
	}
	if cmd.Flags().Changed("spot") {
		obs.SpotIndex = &addSpot
	}
	if cmd.Flags().Changed("hbm-share") {
		obs.HBMRevenueShare = &addHBMShare
	}

	if err := store.Upsert(obs); err != nil {
		return err
	}

	all, err := store.LoadObservations()
	if err != nil {
		return err
	}
	log.Info("observation stored", zap.String("date", addDate), zap.Int("table_size", len(all)))
	fmt.Printf("Stored %s (%d quarters on file)\n", addDate, len(all))

	return nil
}
