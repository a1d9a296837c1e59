package api

import (
	"net/http"
)

// handleGetPortfolio handles GET /api/portfolio - list held positions
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	positions, err := s.portfolioService.Positions(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"positions": positions,
	})
}

// handleGetPnL handles GET /api/portfolio/pnl - compute portfolio valuation
func (s *Server) handleGetPnL(w http.ResponseWriter, r *http.Request) {
	pnl, err := s.pnlService.ComputePortfolioPnL(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, pnl)
}

// handleResetPortfolio handles POST /api/portfolio/reset - wipe and reseed
func (s *Server) handleResetPortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolioService.Reset(r.Context()); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "portfolio reset to initial state",
	})
}

// handleGetExplanations handles GET /api/notes/explanations
func (s *Server) handleGetExplanations(w http.ResponseWriter, r *http.Request) {
	explanations, err := s.portfolioService.Explanations(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"explanations": explanations,
	})
}

// handleSaveStrategy handles PUT /api/notes/strategy
func (s *Server) handleSaveStrategy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Strategy string `json:"strategy"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	if err := s.portfolioService.SaveStrategy(r.Context(), req.Strategy); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// handleGetStrategy handles GET /api/notes/strategy
func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	strategy, err := s.portfolioService.GetStrategy(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	if strategy == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"strategy": nil,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategy": strategy,
	})
}
