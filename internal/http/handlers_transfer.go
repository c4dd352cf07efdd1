package http

import (
	"net/http"

	"recettes/internal/repository"
	"recettes/internal/services"
)

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	sourceID, err := queryID(r.URL.Query(), "source_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	transfers, err := s.ledger.Transfers.ListTransfers(r.Context(), ownerFrom(r), repository.TransferFilter{SourceID: sourceID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]transferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, newTransferResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amt, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, err := s.ledger.Transfers.CreateTransfer(r.Context(), ownerFrom(r), services.TransferInput{
		SourceID:      req.SourceID,
		DestinationID: req.DestinationID,
		Amount:        amt,
		Date:          date,
		Description:   sanitizeInput(req.Description),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransferResponse(t))
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.Transfers.GetTransfer(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransferResponse(t))
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.Transfers.DeleteTransfer(r.Context(), ownerFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
