package table

import (
	"fmt"
	"strings"

	"github.com/newthinker/memcycle/internal/core"
)

// ValidateObservation checks a manually entered observation before it is
// merged into the table. All problems are collected into a single error so
// the caller can surface them at once.
func ValidateObservation(obs core.Observation) error {
	var problems []string

	if obs.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if obs.Utilization < 0 || obs.Utilization > 1 {
		problems = append(problems, fmt.Sprintf("utilization_rate %.4f must be between 0 and 1", obs.Utilization))
	}
	if obs.InventoryWeeks < 0 {
		problems = append(problems, fmt.Sprintf("inventory_weeks_supplier %.2f must not be negative", obs.InventoryWeeks))
	}
	if obs.ContractPriceIndex <= 0 {
		problems = append(problems, fmt.Sprintf("dram_contract_price_index %.2f must be positive", obs.ContractPriceIndex))
	}
	if obs.SpotIndex != nil && *obs.SpotIndex <= 0 {
		problems = append(problems, fmt.Sprintf("dram_spot_index %.2f must be positive", *obs.SpotIndex))
	}
	if obs.HBMASPUSDPerGB != nil && *obs.HBMASPUSDPerGB < 0 {
		problems = append(problems, fmt.Sprintf("hbm_asp_estimate_usd_per_gb %.2f must not be negative", *obs.HBMASPUSDPerGB))
	}
	if obs.CapexBnUSD != nil && *obs.CapexBnUSD < 0 {
		problems = append(problems, fmt.Sprintf("capex_quarterly_bn_usd %.2f must not be negative", *obs.CapexBnUSD))
	}
	if obs.HBMRevenueShare != nil && (*obs.HBMRevenueShare < 0 || *obs.HBMRevenueShare > 100) {
		problems = append(problems, fmt.Sprintf("hbm_revenue_share_pct %.2f must be between 0 and 100", *obs.HBMRevenueShare))
	}

	if len(problems) > 0 {
		return core.WrapError(core.ErrValidationFailed, fmt.Errorf("%s", strings.Join(problems, "; ")))
	}
	return nil
}
