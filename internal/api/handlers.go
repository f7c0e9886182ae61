package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pattern-signal-engine/internal/database"
	"pattern-signal-engine/internal/risk"
)

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleActivePatterns returns non-terminal tracked patterns, optionally
// filtered by ?symbol=.
func (s *Server) handleActivePatterns(c *gin.Context) {
	patterns, err := s.repo.ActivePatterns(c.Request.Context(), c.Query("symbol"))
	if err != nil {
		s.logger.Error().Err(err).Msg("listing active patterns")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load patterns"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns, "count": len(patterns)})
}

func (s *Server) handlePerformance(c *gin.Context) {
	rows, err := s.repo.AllPerformance(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("listing performance")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load performance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"performance": rows, "count": len(rows)})
}

func (s *Server) handleRegime(c *gin.Context) {
	symbol := c.Param("symbol")
	result, err := s.repo.LatestRegime(c.Request.Context(), symbol)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("loading regime")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load regime"})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no regime recorded for symbol"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleScannerStatus(c *gin.Context) {
	if s.scanner == nil {
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}
	c.JSON(http.StatusOK, s.scanner.Status())
}

// handleRiskAssess sizes a position from entry parameters. Validation
// failures come back as 400 with the offending field.
func (s *Server) handleRiskAssess(c *gin.Context) {
	var params risk.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	assessment, err := s.riskEngine.Assess(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) handleGetWatchlist(c *gin.Context) {
	items, err := s.repo.GetWatchlist(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("listing watchlist")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load watchlist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": items, "count": len(items)})
}

func (s *Server) handleAddWatchlist(c *gin.Context) {
	var item database.WatchlistItem
	if err := c.ShouldBindJSON(&item); err != nil || item.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	if item.Timeframe == "" {
		item.Timeframe = "1d"
	}
	if item.ScanIntervalMinutes <= 0 {
		item.ScanIntervalMinutes = 60
	}

	if err := s.repo.AddWatchlistItem(c.Request.Context(), item); err != nil {
		s.logger.Error().Err(err).Str("symbol", item.Symbol).Msg("adding watchlist item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add symbol"})
		return
	}
	c.JSON(http.StatusCreated, item)
}
