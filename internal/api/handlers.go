package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/memcycle/internal/api/response"
	"github.com/newthinker/memcycle/internal/backtest"
	"github.com/newthinker/memcycle/internal/core"
	"github.com/newthinker/memcycle/internal/feature"
	"github.com/newthinker/memcycle/internal/forecast"
	"github.com/newthinker/memcycle/internal/regime"
	"github.com/newthinker/memcycle/internal/signal"
)

const dateLayout = "2006-01-02"

type probsDTO struct {
	Glut     float64 `json:"glut"`
	Balanced float64 `json:"balanced"`
	Tight    float64 `json:"tight"`
}

func toProbsDTO(p core.RegimeProbs) probsDTO {
	return probsDTO{Glut: p.Glut, Balanced: p.Balanced, Tight: p.Tight}
}

type observationDTO struct {
	Date               string   `json:"date"`
	Utilization        float64  `json:"utilization_rate"`
	InventoryWeeks     float64  `json:"inventory_weeks_supplier"`
	ContractPriceIndex float64  `json:"dram_contract_price_index"`
	SpotIndex          *float64 `json:"dram_spot_index,omitempty"`
	HBMASPUSDPerGB     *float64 `json:"hbm_asp_estimate_usd_per_gb,omitempty"`
	CapexBnUSD         *float64 `json:"capex_quarterly_bn_usd,omitempty"`
	HBMRevenueShare    *float64 `json:"hbm_revenue_share_pct,omitempty"`
	NvidiaDCRevBnUSD   *float64 `json:"nvidia_datacenter_rev_bn_usd,omitempty"`
	DRAMRevenueBnUSD   *float64 `json:"dram_revenue_bn_usd,omitempty"`
}

func toObservationDTO(o core.Observation) observationDTO {
	return observationDTO{
		Date:               o.Date.Format(dateLayout),
		Utilization:        o.Utilization,
		InventoryWeeks:     o.InventoryWeeks,
		ContractPriceIndex: o.ContractPriceIndex,
		SpotIndex:          o.SpotIndex,
		HBMASPUSDPerGB:     o.HBMASPUSDPerGB,
		CapexBnUSD:         o.CapexBnUSD,
		HBMRevenueShare:    o.HBMRevenueShare,
		NvidiaDCRevBnUSD:   o.NvidiaDCRevBnUSD,
		DRAMRevenueBnUSD:   o.DRAMRevenueBnUSD,
	}
}

func (d observationDTO) toObservation() (core.Observation, error) {
	date, err := time.Parse(dateLayout, d.Date)
	if err != nil {
		return core.Observation{}, core.WrapError(core.ErrValidationFailed, err)
	}
	return core.Observation{
		Date:               date,
		Utilization:        d.Utilization,
		InventoryWeeks:     d.InventoryWeeks,
		ContractPriceIndex: d.ContractPriceIndex,
		SpotIndex:          d.SpotIndex,
		HBMASPUSDPerGB:     d.HBMASPUSDPerGB,
		CapexBnUSD:         d.CapexBnUSD,
		HBMRevenueShare:    d.HBMRevenueShare,
		NvidiaDCRevBnUSD:   d.NvidiaDCRevBnUSD,
		DRAMRevenueBnUSD:   d.DRAMRevenueBnUSD,
	}, nil
}

// loadFitted loads the stored tables and fits a fresh regime model.
func (s *Server) loadFitted() ([]core.Observation, *regime.Model, error) {
	obs, err := s.store.LoadObservations()
	if err != nil {
		return nil, nil, err
	}
	labels, err := s.store.LoadLabels()
	if err != nil {
		return nil, nil, err
	}

	model := regime.New(s.cfg.Model.UtilizationTarget, s.cfg.Model.InventoryTargetWeeks)

	start := time.Now()
	if err := model.Fit(obs, labels); err != nil {
		s.metrics.RecordModelFit("error", time.Since(start).Seconds())
		return nil, nil, err
	}
	s.metrics.RecordModelFit("ok", time.Since(start).Seconds())
	return obs, model, nil
}

// marketState derives the latest utilization, inventory, price momentum and
// inventory trend from the observation table.
func (s *Server) marketState(obs []core.Observation) (util, inv, momentum, invTrend float64) {
	n := len(obs)
	prices := make([]float64, n)
	for i, o := range obs {
		prices[i] = o.ContractPriceIndex
	}
	util = obs[n-1].Utilization
	inv = obs[n-1].InventoryWeeks
	momentum = feature.Momentum(prices, n-1, s.cfg.Model.MomentumLookback)
	if n >= 2 {
		invTrend = obs[n-1].InventoryWeeks - obs[n-2].InventoryWeeks
	}
	return util, inv, momentum, invTrend
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegime(w http.ResponseWriter, r *http.Request) {
	obs, model, err := s.loadFitted()
	if err != nil {
		response.Error(w, 0, err)
		return
	}

	util, inv, momentum, _ := s.marketState(obs)
	probs := model.Probabilities(util, inv, momentum)

	last := obs[len(obs)-1]
	payload := map[string]any{
		"date":          last.Date.Format(dateLayout),
		"regime":        regime.Classify(util, inv).String(),
		"probabilities": toProbsDTO(probs),
		"momentum":      momentum,
		"regime_score": feature.RegimeScore(util, inv,
			s.cfg.Model.UtilizationTarget, s.cfg.Model.InventoryTargetWeeks),
	}
	if last.CapexBnUSD != nil && last.DRAMRevenueBnUSD != nil {
		payload["capex_intensity"] = feature.CapexIntensity(*last.CapexBnUSD, *last.DRAMRevenueBnUSD)
	}
	response.JSON(w, http.StatusOK, payload)
}

func (s *Server) handleRegimeHistory(w http.ResponseWriter, r *http.Request) {
	obs, err := s.store.LoadObservations()
	if err != nil {
		response.Error(w, 0, err)
		return
	}
	if len(obs) == 0 {
		response.Error(w, 0, core.ErrNoData)
		return
	}

	labels := regime.ClassifyAll(obs)

	type entry struct {
		Date   string `json:"date"`
		Regime string `json:"regime"`
	}
	history := make([]entry, len(obs))
	for i, o := range obs {
		history[i] = entry{
			Date:   o.Date.Format(dateLayout),
			Regime: labels[i].String(),
		}
	}
	response.JSON(w, http.StatusOK, history)
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	obs, model, err := s.loadFitted()
	if err != nil {
		response.Error(w, 0, err)
		return
	}
	preds, err := model.Predict(obs)
	if err != nil {
		response.Error(w, 0, err)
		return
	}

	type entry struct {
		Date          string   `json:"date"`
		Predicted     string   `json:"predicted"`
		Probabilities probsDTO `json:"probabilities"`
	}
	out := make([]entry, len(preds))
	for i, p := range preds {
		out[i] = entry{
			Date:          p.Date.Format(dateLayout),
			Predicted:     p.Predicted.String(),
			Probabilities: toProbsDTO(p.Probs),
		}
	}
	response.JSON(w, http.StatusOK, out)
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	_, model, err := s.loadFitted()
	if err != nil {
		response.Error(w, 0, err)
		return
	}
	tm, err := model.Transitions()
	if err != nil {
		response.Error(w, 0, err)
		return
	}

	matrix := make(map[string]probsDTO, core.NumRegimes)
	for _, from := range core.Regimes {
		matrix[from.String()] = probsDTO{
			Glut:     tm.Prob(from, core.RegimeGlut),
			Balanced: tm.Prob(from, core.RegimeBalanced),
			Tight:    tm.Prob(from, core.RegimeTight),
		}
	}
	response.JSON(w, http.StatusOK, matrix)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	obs, model, err := s.loadFitted()
	if err != nil {
		response.Error(w, 0, err)
		return
	}

	util, inv, momentum, invTrend := s.marketState(obs)
	probs := model.Probabilities(util, inv, momentum)

	gen := signal.New(s.cfg.Signal.BuyThreshold, s.cfg.Signal.SellThreshold, s.cfg.Signal.RiskTolerance)
	sig := gen.Generate(probs, momentum, invTrend)
	s.metrics.RecordSignal(string(sig.Action))

	response.JSON(w, http.StatusOK, map[string]any{
		"action":        string(sig.Action),
		"confidence":    sig.Confidence,
		"position_size": sig.PositionSize,
		"reason":        sig.Reason,
		"generated_at":  sig.GeneratedAt.UTC(),
		"probabilities": toProbsDTO(probs),
	})
}

type forecastRequest struct {
	Horizon      *int     `json:"horizon_quarters,omitempty"`
	Simulations  *int     `json:"simulations,omitempty"`
	DemandGrowth *float64 `json:"demand_growth,omitempty"`
	Seed         *int64   `json:"seed,omitempty"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, 0, core.WrapError(core.ErrValidationFailed, err))
			return
		}
	}

	obs, model, err := s.loadFitted()
	if err != nil {
		s.metrics.RecordForecast("error", 0)
		response.Error(w, 0, err)
		return
	}

	params := forecast.Params{
		InitialPrice:       obs[len(obs)-1].ContractPriceIndex,
		InitialUtilization: obs[len(obs)-1].Utilization,
		InitialInventory:   obs[len(obs)-1].InventoryWeeks,
		Horizon:            s.cfg.Forecast.HorizonQuarters,
		Simulations:        s.cfg.Forecast.Simulations,
		DemandGrowth:       s.cfg.Forecast.DemandGrowth,
		Seed:               s.cfg.Forecast.Seed,
	}
	if req.Horizon != nil {
		params.Horizon = *req.Horizon
	}
	if req.Simulations != nil {
		params.Simulations = *req.Simulations
	}
	if req.DemandGrowth != nil {
		params.DemandGrowth = *req.DemandGrowth
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}

	points, err := forecast.New(model).Run(params)
	if err != nil {
		s.metrics.RecordForecast("error", 0)
		response.Error(w, 0, err)
		return
	}
	s.metrics.RecordForecast("ok", params.Simulations)

	expReturn, expVol, err := model.ForecastReturn(
		params.InitialUtilization, params.InitialInventory, 0)
	if err != nil {
		response.Error(w, 0, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"initial_price":       params.InitialPrice,
		"expected_log_return": expReturn,
		"expected_volatility": expVol,
		"horizon_quarters":    params.Horizon,
		"simulations":         params.Simulations,
		"points":              points,
	})
}

type backtestRequest struct {
	TrainStart     string `json:"train_start"`
	TestStart      string `json:"test_start"`
	IncludeSignals bool   `json:"include_signals,omitempty"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, 0, core.WrapError(core.ErrValidationFailed, err))
		return
	}
	trainStart, err := time.Parse(dateLayout, req.TrainStart)
	if err != nil {
		response.Error(w, 0, core.WrapError(core.ErrValidationFailed, err))
		return
	}
	testStart, err := time.Parse(dateLayout, req.TestStart)
	if err != nil {
		response.Error(w, 0, core.WrapError(core.ErrValidationFailed, err))
		return
	}

	obs, err := s.store.LoadObservations()
	if err != nil {
		response.Error(w, 0, err)
		return
	}
	labels, err := s.store.LoadLabels()
	if err != nil {
		response.Error(w, 0, err)
		return
	}

	b := backtest.New(s.cfg.Model.UtilizationTarget, s.cfg.Model.InventoryTargetWeeks,
		s.cfg.Backtest.MinTrainPeriods)

	start := time.Now()
	result, err := b.Run(obs, labels, trainStart, testStart)
	if err != nil {
		s.metrics.RecordBacktest("error", time.Since(start).Seconds())
		response.Error(w, 0, err)
		return
	}
	s.metrics.RecordBacktest("ok", time.Since(start).Seconds())

	payload := map[string]any{
		"train_periods": result.TrainPeriods,
		"test_periods":  result.TestPeriods,
		"train_start":   result.TrainStart.Format(dateLayout),
		"train_end":     result.TrainEnd.Format(dateLayout),
		"test_start":    result.TestStart.Format(dateLayout),
		"test_end":      result.TestEnd.Format(dateLayout),
		"metrics":       result.Metrics,
	}

	if req.IncludeSignals {
		var test []core.Observation
		for _, o := range obs {
			if !o.Date.Before(testStart) {
				test = append(test, o)
			}
		}
		sigResult, err := b.SignalBacktest(test, result.Predictions, backtest.SignalParams{
			BuyThreshold:   s.cfg.Signal.BuyThreshold,
			SellThreshold:  s.cfg.Signal.SellThreshold,
			AnnualRiskFree: s.cfg.Backtest.AnnualRiskFree,
		})
		if err != nil {
			response.Error(w, 0, err)
			return
		}
		payload["signals"] = sigResult
	}

	response.JSON(w, http.StatusOK, payload)
}

func (s *Server) handleUpsertObservation(w http.ResponseWriter, r *http.Request) {
	var dto observationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		response.Error(w, 0, core.WrapError(core.ErrValidationFailed, err))
		return
	}
	obs, err := dto.toObservation()
	if err != nil {
		response.Error(w, 0, err)
		return
	}

	if err := s.store.Upsert(obs); err != nil {
		response.Error(w, 0, err)
		return
	}

	all, err := s.store.LoadObservations()
	if err != nil {
		response.Error(w, 0, err)
		return
	}
	s.metrics.RecordObservationStored(len(all))
	s.logger.Info("observation stored",
		zap.String("date", obs.Date.Format(dateLayout)),
		zap.Int("table_size", len(all)))

	response.JSON(w, http.StatusCreated, map[string]any{
		"date":       obs.Date.Format(dateLayout),
		"table_size": len(all),
	})
}

func (s *Server) handleListObservations(w http.ResponseWriter, r *http.Request) {
	obs, err := s.store.LoadObservations()
	if err != nil {
		response.Error(w, 0, err)
		return
	}
	dtos := make([]observationDTO, len(obs))
	for i, o := range obs {
		dtos[i] = toObservationDTO(o)
	}
	response.JSON(w, http.StatusOK, dtos)
}
