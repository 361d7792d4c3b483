package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "memcycle",
	Short: "memcycle - memory market cycle regime engine",
	Long: `memcycle estimates the current memory market regime (glut, balanced,
tight) from quarterly supply/demand data, forecasts DRAM contract prices
with Monte Carlo simulation and backtests the regime model out of sample.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
