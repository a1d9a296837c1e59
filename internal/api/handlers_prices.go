package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// handleGetPrice handles GET /api/prices/{symbol} - resolve a token price.
// Pass ?fresh=true to bypass the cache the way trade execution does.
func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if symbol == "" {
		respondBadRequest(w, "Token symbol required")
		return
	}

	resolve := s.priceResolver.Resolve
	if r.URL.Query().Get("fresh") == "true" {
		resolve = s.priceResolver.ResolveFresh
	}

	price, err := resolve(r.Context(), symbol)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"price":  price,
	})
}

// handlePriceStatus handles GET /api/prices/status - cache contents, venue
// breaker state and PnL freshness in one view.
func (s *Server) handlePriceStatus(w http.ResponseWriter, r *http.Request) {
	lastChecked := s.pnlService.LastChecked()

	status := map[string]interface{}{
		"cache":          s.priceResolver.Cache().Snapshot(),
		"circuitBreaker": s.breakerStats.BreakerStats(),
	}
	if lastChecked.IsZero() {
		status["pnlLastChecked"] = nil
	} else {
		status["pnlLastChecked"] = lastChecked.UTC().Format(time.RFC3339)
	}

	respondJSON(w, http.StatusOK, status)
}
