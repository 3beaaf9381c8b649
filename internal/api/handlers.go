package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"prop-trading-engine/internal/marketdata"
)

type priceView struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Volume    int64   `json:"volume"`
	Timestamp string  `json:"timestamp"`
}

func viewOf(q marketdata.Quote) priceView {
	return priceView{
		Symbol:    q.Symbol,
		Bid:       q.Bid,
		Ask:       q.Ask,
		High:      q.High,
		Low:       q.Low,
		Volume:    q.Volume,
		Timestamp: q.FetchedAt.UTC().Format(time.RFC3339),
	}
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePrices(c *gin.Context) {
	prices := make(map[string]priceView)
	for _, symbol := range s.registry.Symbols() {
		q, err := s.quotes.Get(c.Request.Context(), symbol, s.config.CacheTTL)
		if err != nil {
			// Symbols without a quote are omitted rather than erroring
			// the whole response
			continue
		}
		prices[symbol] = viewOf(q)
	}

	c.JSON(http.StatusOK, gin.H{
		"prices":    prices,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePrice(c *gin.Context) {
	symbol := c.Param("symbol")

	if _, ok := s.registry.Get(symbol); !ok {
		errorResponse(c, http.StatusNotFound, "unknown symbol: "+symbol)
		return
	}

	q, err := s.quotes.Get(c.Request.Context(), symbol, s.config.CacheTTL)
	if err != nil {
		errorResponse(c, http.StatusNotFound, "no quote available for "+symbol)
		return
	}

	c.JSON(http.StatusOK, viewOf(q))
}
