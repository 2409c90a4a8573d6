package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"meanrev/internal/backtest"
	"meanrev/internal/data"
	"meanrev/internal/engine"
	"meanrev/internal/market"
	"meanrev/internal/store"
)

// backtestRequest selects the data source and the parameters that differ
// from the defaults. Omitted overrides keep the reference configuration.
type backtestRequest struct {
	Symbol    string `json:"symbol" binding:"required"`
	Timeframe string `json:"timeframe"`

	Source struct {
		// Type is "mock" or "csv".
		Type string `json:"type" binding:"required"`
		Seed int64  `json:"seed"`
		Bars int    `json:"bars"`
		Path string `json:"path"`
	} `json:"source"`

	InitialCash     *float64 `json:"initial_cash"`
	RiskReward      *float64 `json:"risk_reward_ratio"`
	StopLossATRMult *float64 `json:"stop_loss_atr_multiplier"`
	RegimeMinScore  *int     `json:"regime_min_score"`
	CommissionRate  *float64 `json:"commission_rate"`
}

func (r *backtestRequest) toConfig() engine.Config {
	cfg := engine.DefaultConfig(r.Symbol)
	if r.Timeframe != "" {
		cfg.Timeframe = market.Timeframe(r.Timeframe)
	}
	if r.InitialCash != nil {
		cfg.InitialCash = *r.InitialCash
	}
	if r.RiskReward != nil {
		cfg.RiskReward = *r.RiskReward
	}
	if r.StopLossATRMult != nil {
		cfg.StopLossATRMult = *r.StopLossATRMult
	}
	if r.RegimeMinScore != nil {
		cfg.RegimeMinScore = *r.RegimeMinScore
	}
	if r.CommissionRate != nil {
		cfg.CommissionRate = *r.CommissionRate
	}
	return cfg
}

func (r *backtestRequest) loadBars(cfg engine.Config) ([]market.Bar, error) {
	switch r.Source.Type {
	case "mock":
		mc := data.DefaultMockConfig(r.Symbol)
		mc.Timeframe = cfg.Timeframe
		if r.Source.Seed != 0 {
			mc.Seed = r.Source.Seed
		}
		if r.Source.Bars > 0 {
			mc.Bars = r.Source.Bars
		}
		return data.GenerateBars(mc), nil
	case "csv":
		if r.Source.Path == "" {
			return nil, errors.New("csv source needs a path")
		}
		return data.LoadCSV(r.Source.Path)
	default:
		return nil, errors.New("unknown source type, want mock or csv")
	}
}

// runBacktest executes a backtest synchronously and persists the result.
func (s *Server) runBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": err.Error()})
		return
	}

	cfg := req.toConfig()
	eng, err := engine.New(cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_CONFIG", "error": err.Error()})
		return
	}

	bars, err := req.loadBars(cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_SOURCE", "error": err.Error()})
		return
	}

	res, err := eng.Run(bars)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "RUN_FAILED", "error": err.Error()})
		return
	}
	sum := backtest.Compute(res)

	runID, err := s.store.SaveRun(c.Request.Context(), res, sum, cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "PERSIST_FAILED", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": runID, "summary": sum})
}

// listRuns returns stored run headers, newest first.
func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.store.ListRuns(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "QUERY_FAILED", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	rec, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "QUERY_FAILED", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) getRunOrders(c *gin.Context) {
	orders, err := s.store.GetOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "QUERY_FAILED", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) getRunEquity(c *gin.Context) {
	curve, err := s.store.GetEquity(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "QUERY_FAILED", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"equity": curve})
}
