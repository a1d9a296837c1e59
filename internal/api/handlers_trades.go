package api

import (
	"net/http"

	"github.com/shopspring/decimal"
)

// handleTrade handles POST /api/trades - simulate a token conversion
func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromToken   string `json:"fromToken"`
		ToToken     string `json:"toToken"`
		FromAmount  string `json:"fromAmount"`
		Explanation string `json:"explanation,omitempty"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	if req.FromToken == "" || req.ToToken == "" {
		respondBadRequest(w, "fromToken and toToken are required")
		return
	}

	fromAmount, err := decimal.NewFromString(req.FromAmount)
	if err != nil {
		respondBadRequest(w, "fromAmount must be a decimal number")
		return
	}

	result, err := s.tradeService.Trade(r.Context(), req.FromToken, req.ToToken, fromAmount, req.Explanation)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleGetTrades handles GET /api/trades - retained trade history
func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.portfolioService.TradeHistory(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
	})
}

// handleDecline handles POST /api/trades/decline - record a hold decision
func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Explanation string `json:"explanation"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	if err := s.tradeService.Decline(r.Context(), req.Explanation); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "hold decision recorded",
	})
}
