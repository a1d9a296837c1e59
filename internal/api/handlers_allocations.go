package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/service"
)

// handleSetAllocations handles PUT /api/allocations - replace the target set
func (s *Server) handleSetAllocations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Allocations []struct {
			Symbol     string `json:"symbol"`
			Percentage string `json:"percentage"`
		} `json:"allocations"`
		Reasoning string `json:"reasoning,omitempty"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	inputs := make([]service.TargetInput, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		percentage, err := decimal.NewFromString(a.Percentage)
		if err != nil {
			respondBadRequest(w, "percentage must be a decimal number")
			return
		}
		inputs = append(inputs, service.TargetInput{
			Symbol:     a.Symbol,
			Percentage: percentage,
		})
	}

	if err := s.allocService.SetTargets(r.Context(), inputs, req.Reasoning); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "allocation targets replaced",
	})
}

// handleGetAllocations handles GET /api/allocations - stored targets
func (s *Server) handleGetAllocations(w http.ResponseWriter, r *http.Request) {
	targets, err := s.allocService.GetTargets(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": targets,
	})
}

// handleGetDeviations handles GET /api/allocations/deviations - over/underweight flags
func (s *Server) handleGetDeviations(w http.ResponseWriter, r *http.Request) {
	deviations, err := s.allocService.Deviations(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deviations": deviations,
	})
}
