package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newthinker/memcycle/internal/core"
	"github.com/newthinker/memcycle/internal/feature"
	"github.com/newthinker/memcycle/internal/logger"
	"github.com/newthinker/memcycle/internal/regime"
	"github.com/newthinker/memcycle/internal/signal"
)

var regimeHistory bool

var regimeCmd = &cobra.Command{
	Use:   "regime",
	Short: "Estimate the current market regime",
	Long:  "Fit the regime model on the stored quarterly data and print the current regime, its probabilities and the trading signal",
	RunE:  runRegime,
}

func init() {
	regimeCmd.Flags().BoolVar(&regimeHistory, "history", false, "print the rule-based regime for every stored quarter")

	rootCmd.AddCommand(regimeCmd)
}

func runRegime(cmd *cobra.Command, args []string) error {
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

	if regimeHistory {
		if len(obs) == 0 {
			return core.ErrNoData
		}
		fmt.Println("=== Regime History ===")
		for _, o := range obs {
			fmt.Printf("%s  %-8s  util=%.2f  inv=%.1fw\n",
				o.Date.Format("2006-01-02"),
				regime.Classify(o.Utilization, o.InventoryWeeks),
				o.Utilization, o.InventoryWeeks)
		}
		return nil
	}

	model, err := fitModel(cfg, obs, labels)
	if err != nil {
		return err
	}

	last := obs[len(obs)-1]
	prices := make([]float64, len(obs))
	for i, o := range obs {
		prices[i] = o.ContractPriceIndex
	}
	momentum := feature.Momentum(prices, len(prices)-1, cfg.Model.MomentumLookback)
	invTrend := 0.0
	if len(obs) >= 2 {
		invTrend = last.InventoryWeeks - obs[len(obs)-2].InventoryWeeks
	}

	probs := model.Probabilities(last.Utilization, last.InventoryWeeks, momentum)

	fmt.Println("=== Market Regime ===")
	fmt.Printf("As of:       %s\n", last.Date.Format("2006-01-02"))
	fmt.Printf("Regime:      %s\n", regime.Classify(last.Utilization, last.InventoryWeeks))
	fmt.Printf("Utilization: %.1f%%\n", last.Utilization*100)
	fmt.Printf("Inventory:   %.1f weeks\n", last.InventoryWeeks)
	fmt.Printf("Momentum:    %+.2f%%\n", momentum*100)
	fmt.Printf("Cycle score: %+.2f\n", feature.RegimeScore(last.Utilization, last.InventoryWeeks,
		cfg.Model.UtilizationTarget, cfg.Model.InventoryTargetWeeks))
	if last.CapexBnUSD != nil && last.DRAMRevenueBnUSD != nil {
		fmt.Printf("Capex/rev:   %.1f%%\n", feature.CapexIntensity(*last.CapexBnUSD, *last.DRAMRevenueBnUSD)*100)
	}
	fmt.Println()
	fmt.Printf("P(glut)     = %.3f\n", probs.Glut)
	fmt.Printf("P(balanced) = %.3f\n", probs.Balanced)
	fmt.Printf("P(tight)    = %.3f\n", probs.Tight)
	fmt.Println()

	tm, err := model.Transitions()
	if err != nil {
		return err
	}
	fmt.Println("Transition matrix (rows: from, columns: to glut/balanced/tight):")
	for _, from := range core.Regimes {
		fmt.Printf("  %-8s  %.2f  %.2f  %.2f\n", from,
			tm.Prob(from, core.RegimeGlut),
			tm.Prob(from, core.RegimeBalanced),
			tm.Prob(from, core.RegimeTight))
	}
	fmt.Println()

	gen := signal.New(cfg.Signal.BuyThreshold, cfg.Signal.SellThreshold, cfg.Signal.RiskTolerance)
	sig := gen.Generate(probs, momentum, invTrend)
	fmt.Printf("Signal:   %s (confidence %.2f)\n", sig.Action, sig.Confidence)
	if sig.PositionSize > 0 {
		fmt.Printf("Position: %.1f%% of portfolio\n", sig.PositionSize*100)
	}
	fmt.Printf("Reason:   %s\n", sig.Reason)

	return nil
}
