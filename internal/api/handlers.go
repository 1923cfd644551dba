package api

import (
	"net/http"
	"time"

	"adaptive-trading-bot/internal/auth"
	"adaptive-trading-bot/internal/brain"
	"adaptive-trading-bot/internal/indicators"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.authConfig.Enabled {
		c.JSON(http.StatusOK, gin.H{"token": "", "auth_disabled": true})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	if req.Username != s.authConfig.Username ||
		!auth.VerifyPassword(req.Password, s.authConfig.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.jwt.GenerateToken(req.Username)
	if err != nil {
		s.logger.Error().Err(err).Msg("token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleStatus(c *gin.Context) {
	connStatus := s.client.ConnectionStatus()
	breakerState, breakerReason := s.breaker.State()
	goodTime, timeReason := s.brain.IsGoodTradingTime()
	stats := s.brain.GetLearningStats()

	c.JSON(http.StatusOK, gin.H{
		"trading_active":    s.sched.IsRunning(),
		"cycle_in_progress": s.sched.CycleInProgress(),
		"cycles":            s.sched.Cycles(),
		"connection": gin.H{
			"connected": connStatus.Connected,
			"network":   connStatus.Network,
			"identity":  connStatus.Identity,
		},
		"circuit_breaker": gin.H{
			"state":  string(breakerState),
			"reason": breakerReason,
		},
		"good_trading_time": goodTime,
		"timing_reason":     timeReason,
		"open_positions":    s.controller.OpenPositionCount(),
		"total_trades":      stats.TotalTrades,
		"win_rate":          stats.WinRate,
		"brain_version":     stats.Version,
		"uptime":            time.Since(s.startedAt).String(),
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.controller.OpenPositions()})
}

func (s *Server) handleBrainStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.brain.GetLearningStats())
}

func (s *Server) handleBrainWeights(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"weights": s.brain.GetStrategyWeights()})
}

func (s *Server) handleBrainParameters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"parameters": s.brain.GetOptimizedParameters(),
		"risk":       s.brain.GetRiskLearning(),
	})
}

func (s *Server) handleBrainTiming(c *gin.Context) {
	c.JSON(http.StatusOK, s.brain.GetTimingTable())
}

// handleBrainConfidence scores a hypothetical entry for a symbol and
// strategy against live market data.
func (s *Server) handleBrainConfidence(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	strategy := c.Query("strategy")
	if strategy == "" {
		strategy = s.brain.GetBestStrategyForSymbol(symbol)
	}

	klines, err := s.client.GetKlines(symbol, "5m", 100)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch market data"})
		return
	}

	ind := indicators.Snapshot(klines)
	market := indicators.DeriveMarketState(klines, ind)
	confidence := s.brain.EntryConfidence(symbol, strategy, market, ind)

	c.JSON(http.StatusOK, gin.H{
		"symbol":     symbol,
		"strategy":   strategy,
		"confidence": confidence,
		"market":     market,
		"indicators": ind,
	})
}

func (s *Server) handleSymbolPerformance(c *gin.Context) {
	symbol := c.Param("symbol")
	perf, ok := s.brain.GetSymbolPerformance(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no history for symbol"})
		return
	}
	c.JSON(http.StatusOK, perf)
}

// handleBrainLearn feeds a manually supplied lesson into the brain. Used
// to replay historical trades into a fresh brain.
func (s *Server) handleBrainLearn(c *gin.Context) {
	var lesson brain.Lesson
	if err := c.ShouldBindJSON(&lesson); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lesson payload"})
		return
	}
	if lesson.Symbol == "" || lesson.Strategy == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and strategy are required"})
		return
	}
	if lesson.Timestamp.IsZero() {
		lesson.Timestamp = time.Now().UTC()
	}

	insights := s.brain.LearnFromTrade(&lesson)
	c.JSON(http.StatusOK, gin.H{"insights": insights})
}

func (s *Server) handleBrainExport(c *gin.Context) {
	state, err := s.brain.Export()
	if err != nil {
		s.logger.Error().Err(err).Msg("brain export failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(state))
}

func (s *Server) handleBrainImport(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	if err := s.brain.Import(string(body)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": true})
}

func (s *Server) handleTradingStart(c *gin.Context) {
	if err := s.sched.Start(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trading_active": true})
}

func (s *Server) handleTradingStop(c *gin.Context) {
	if err := s.sched.Stop(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trading_active": false})
}

// handleUpdateParameters overwrites the live adaptive parameters. Values
// outside learned bounds are clamped, not rejected.
func (s *Server) handleUpdateParameters(c *gin.Context) {
	var params brain.AdaptiveParameters
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parameters payload"})
		return
	}

	s.brain.UpdateParameters(params)
	c.JSON(http.StatusOK, gin.H{"parameters": s.brain.GetOptimizedParameters()})
}
