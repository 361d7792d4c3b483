// Package table loads and saves the quarterly observation and regime-label
// tables. Reads are whole-table loads; writes overwrite the whole file.
// The engine core never touches disk itself; it receives loaded tables.
package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/newthinker/memcycle/internal/core"
)

const dateLayout = "2006-01-02"

var observationHeader = []string{
	"date",
	"utilization_rate",
	"inventory_weeks_supplier",
	"dram_contract_price_index",
	"dram_spot_index",
	"hbm_asp_estimate_usd_per_gb",
	"capex_quarterly_bn_usd",
	"hbm_revenue_share_pct",
	"nvidia_datacenter_rev_bn_usd",
	"dram_revenue_bn_usd",
}

var labelHeader = []string{"date", "regime", "confidence", "notes"}

// Store reads and writes CSV tables under a data directory.
type Store struct {
	dataDir string
}

// NewStore creates a Store rooted at dataDir, creating it if needed.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating data dir: %w", err))
	}
	return &Store{dataDir: dataDir}, nil
}

func (s *Store) observationPath() string {
	return filepath.Join(s.dataDir, "historical_data.csv")
}

func (s *Store) labelPath() string {
	return filepath.Join(s.dataDir, "regime_labels.csv")
}

// LoadObservations reads the historical table: parsed, date-sorted and
// deduplicated (last row wins on duplicate dates). A missing file is an
// empty table, not an error.
func (s *Store) LoadObservations() ([]core.Observation, error) {
	records, err := readCSV(s.observationPath())
	if err != nil {
		return nil, err
	}
	if records == nil {
		return nil, nil
	}

	cols, err := columnIndex(records[0], "date", "utilization_rate", "inventory_weeks_supplier", "dram_contract_price_index")
	if err != nil {
		return nil, err
	}

	byDate := make(map[time.Time]core.Observation)
	for i, rec := range records[1:] {
		obs, err := parseObservation(rec, cols)
		if err != nil {
			return nil, core.WrapError(core.ErrValidationFailed, fmt.Errorf("row %d: %w", i+2, err))
		}
		byDate[obs.Date] = obs // last write wins
	}

	obs := make([]core.Observation, 0, len(byDate))
	for _, o := range byDate {
		obs = append(obs, o)
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })
	return obs, nil
}

// SaveObservations overwrites the historical table with the given rows.
func (s *Store) SaveObservations(obs []core.Observation) error {
	records := [][]string{observationHeader}
	for _, o := range obs {
		records = append(records, []string{
			o.Date.Format(dateLayout),
			formatFloat(o.Utilization),
			formatFloat(o.InventoryWeeks),
			formatFloat(o.ContractPriceIndex),
			formatOptional(o.SpotIndex),
			formatOptional(o.HBMASPUSDPerGB),
			formatOptional(o.CapexBnUSD),
			formatOptional(o.HBMRevenueShare),
			formatOptional(o.NvidiaDCRevBnUSD),
			formatOptional(o.DRAMRevenueBnUSD),
		})
	}
	return writeCSV(s.observationPath(), records)
}

// LoadLabels reads the ground-truth regime label table. A missing file is
// an empty table.
func (s *Store) LoadLabels() ([]core.RegimeLabel, error) {
	records, err := readCSV(s.labelPath())
	if err != nil {
		return nil, err
	}
	if records == nil {
		return nil, nil
	}

	cols, err := columnIndex(records[0], "date", "regime")
	if err != nil {
		return nil, err
	}

	var labels []core.RegimeLabel
	for i, rec := range records[1:] {
		date, err := time.Parse(dateLayout, rec[cols["date"]])
		if err != nil {
			return nil, core.WrapError(core.ErrValidationFailed, fmt.Errorf("row %d: bad date: %w", i+2, err))
		}
		r, err := core.ParseRegime(rec[cols["regime"]])
		if err != nil {
			return nil, core.WrapError(core.ErrValidationFailed, fmt.Errorf("row %d: %w", i+2, err))
		}

		label := core.RegimeLabel{Date: date, Regime: r}
		if c, ok := cols["confidence"]; ok && rec[c] != "" {
			if label.Confidence, err = strconv.ParseFloat(rec[c], 64); err != nil {
				return nil, core.WrapError(core.ErrValidationFailed, fmt.Errorf("row %d: bad confidence: %w", i+2, err))
			}
		}
		if c, ok := cols["notes"]; ok {
			label.Notes = rec[c]
		}
		labels = append(labels, label)
	}

	sort.Slice(labels, func(i, j int) bool { return labels[i].Date.Before(labels[j].Date) })
	return labels, nil
}

// SaveLabels overwrites the regime label table.
func (s *Store) SaveLabels(labels []core.RegimeLabel) error {
	records := [][]string{labelHeader}
	for _, l := range labels {
		records = append(records, []string{
			l.Date.Format(dateLayout),
			l.Regime.String(),
			formatFloat(l.Confidence),
			l.Notes,
		})
	}
	return writeCSV(s.labelPath(), records)
}

// Upsert validates a manually entered observation and merges it into the
// stored table, replacing any row with the same date. The table is left
// unmodified when validation fails.
func (s *Store) Upsert(obs core.Observation) error {
	if err := ValidateObservation(obs); err != nil {
		return err
	}

	existing, err := s.LoadObservations()
	if err != nil {
		return err
	}

	replaced := false
	for i, o := range existing {
		if o.Date.Equal(obs.Date) {
			existing[i] = obs
			replaced = true
			break
		}
	}
	if !replaced {
		existing = append(existing, obs)
		sort.Slice(existing, func(i, j int) bool { return existing[i].Date.Before(existing[j].Date) })
	}
	return s.SaveObservations(existing)
}

func parseObservation(rec []string, cols map[string]int) (core.Observation, error) {
	var obs core.Observation
	var err error

	if obs.Date, err = time.Parse(dateLayout, rec[cols["date"]]); err != nil {
		return obs, fmt.Errorf("bad date: %w", err)
	}
	if obs.Utilization, err = strconv.ParseFloat(rec[cols["utilization_rate"]], 64); err != nil {
		return obs, fmt.Errorf("bad utilization_rate: %w", err)
	}
	if obs.InventoryWeeks, err = strconv.ParseFloat(rec[cols["inventory_weeks_supplier"]], 64); err != nil {
		return obs, fmt.Errorf("bad inventory_weeks_supplier: %w", err)
	}
	if obs.ContractPriceIndex, err = strconv.ParseFloat(rec[cols["dram_contract_price_index"]], 64); err != nil {
		return obs, fmt.Errorf("bad dram_contract_price_index: %w", err)
	}

	obs.SpotIndex = parseOptional(rec, cols, "dram_spot_index")
	obs.HBMASPUSDPerGB = parseOptional(rec, cols, "hbm_asp_estimate_usd_per_gb")
	obs.CapexBnUSD = parseOptional(rec, cols, "capex_quarterly_bn_usd")
	obs.HBMRevenueShare = parseOptional(rec, cols, "hbm_revenue_share_pct")
	obs.NvidiaDCRevBnUSD = parseOptional(rec, cols, "nvidia_datacenter_rev_bn_usd")
	obs.DRAMRevenueBnUSD = parseOptional(rec, cols, "dram_revenue_bn_usd")
	return obs, nil
}

func parseOptional(rec []string, cols map[string]int, name string) *float64 {
	c, ok := cols[name]
	if !ok || c >= len(rec) || rec[c] == "" {
		return nil
	}
	v, err := strconv.ParseFloat(rec[c], 64)
	if err != nil {
		return nil
	}
	return &v
}

func columnIndex(header []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, core.WrapError(core.ErrValidationFailed, fmt.Errorf("missing required column %q", name))
		}
	}
	return cols, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer f.Close()

	// Every record must match the header width; ragged rows fail the read.
	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records, nil
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
