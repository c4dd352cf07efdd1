package http

import (
	"net/http"

	"recettes/internal/services"
)

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.ledger.Income.ListIncomeSources(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSourceResponses(sources))
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	initial, err := parseAmount("initial_amount", req.InitialAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	src, err := s.ledger.Income.CreateIncomeSource(r.Context(), ownerFrom(r), sanitizeInput(req.Label), initial)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSourceResponse(src))
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	src, err := s.ledger.Income.GetIncomeSource(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSourceResponse(src))
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req sourcePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	initial, err := parseOptionalAmount("initial_amount", req.InitialAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	src, err := s.ledger.Income.UpdateIncomeSource(r.Context(), ownerFrom(r), id, services.IncomeSourcePatch{
		Label:         sanitizeOptional(req.Label),
		InitialAmount: initial,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSourceResponse(src))
}

func (s *Server) handleCloseSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	src, err := s.ledger.Income.CloseIncomeSource(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSourceResponse(src))
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.Income.DeleteIncomeSource(r.Context(), ownerFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSourceBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	balance, err := s.ledger.Income.Balance(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		SourceID int64  `json:"source_id"`
		Balance  amount `json:"balance"`
	}{id, newAmount(balance)})
}

func (s *Server) handleReconcileAll(w http.ResponseWriter, r *http.Request) {
	sources, drifts, err := s.ledger.Reconciler.ReconcileAll(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Sources []sourceResponse `json:"sources"`
		Drifts  []driftResponse  `json:"drifts"`
	}{newSourceResponses(sources), newDriftResponses(drifts)})
}
