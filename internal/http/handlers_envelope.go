package http

import (
	"net/http"

	"recettes/internal/core"
	"recettes/internal/repository"
	"recettes/internal/services"
)

func (s *Server) handleListBudgetMonths(w http.ResponseWriter, r *http.Request) {
	months, err := s.ledger.Envelope.ListBudgetMonths(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]budgetMonthResponse, 0, len(months))
	for _, bm := range months {
		out = append(out, newBudgetMonthResponse(bm))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetOrCreateBudgetMonth returns the month when it exists. Revenue is
// only read when the month has to be created.
func (s *Server) handleGetOrCreateBudgetMonth(w http.ResponseWriter, r *http.Request) {
	var req budgetMonthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	revenue, err := parseOptionalAmount("revenue", req.Revenue)
	if err != nil {
		writeError(w, r, err)
		return
	}

	bm, err := s.ledger.Envelope.GetOrCreateBudgetMonth(r.Context(), ownerFrom(r), req.Year, req.Month, revenue)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetMonthResponse(bm))
}

func (s *Server) handleMonthOverviewFor(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ov, err := s.ledger.Envelope.MonthOverviewFor(r.Context(), ownerFrom(r), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMonthOverviewResponse(ov))
}

func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ov, err := s.ledger.Envelope.MonthOverview(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMonthOverviewResponse(ov))
}

func (s *Server) handleListLineItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := s.ledger.Envelope.ListLineItems(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLineItemViewResponses(views))
}

func (s *Server) handleCreateLineItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req lineItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	budgeted, err := parseAmount("budgeted_amount", req.Budgeted)
	if err != nil {
		writeError(w, r, err)
		return
	}

	li, err := s.ledger.Envelope.CreateLineItem(r.Context(), ownerFrom(r), id, services.LineItemInput{
		Name:     sanitizeInput(req.Name),
		Budgeted: budgeted,
		Kind:     core.LineItemKind(sanitizeInput(req.Kind)),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLineItemResponse(li))
}

func (s *Server) handleListMonthMovements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.listMovements(w, r, repository.MovementFilter{BudgetMonthID: id})
}

func (s *Server) handleGetLineItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.ledger.Envelope.GetLineItem(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLineItemViewResponse(view))
}

func (s *Server) handleUpdateLineItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req lineItemPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	budgeted, err := parseOptionalAmount("budgeted_amount", req.Budgeted)
	if err != nil {
		writeError(w, r, err)
		return
	}

	patch := services.LineItemPatch{
		Name:     sanitizeOptional(req.Name),
		Budgeted: budgeted,
	}
	if req.Kind != nil {
		kind := core.LineItemKind(sanitizeInput(*req.Kind))
		patch.Kind = &kind
	}
	if req.Status != nil {
		status := core.LineItemStatus(sanitizeInput(*req.Status))
		patch.Status = &status
	}

	li, err := s.ledger.Envelope.UpdateLineItem(r.Context(), ownerFrom(r), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLineItemResponse(li))
}

func (s *Server) handleDeleteLineItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.Envelope.DeleteLineItem(r.Context(), ownerFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLineItemMovements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.listMovements(w, r, repository.MovementFilter{LineItemID: id})
}

func (s *Server) listMovements(w http.ResponseWriter, r *http.Request, filter repository.MovementFilter) {
	movements, err := s.ledger.Envelope.ListMovements(r.Context(), ownerFrom(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, newMovementResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req movementRequest
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

	m, err := s.ledger.Envelope.AddMovement(r.Context(), ownerFrom(r), id, services.MovementInput{
		Amount:      amt,
		Date:        date,
		Description: sanitizeInput(req.Description),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMovementResponse(m))
}

func (s *Server) handleUpdateMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req movementPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amt, err := parseOptionalAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseOptionalDateField("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	m, err := s.ledger.Envelope.UpdateMovement(r.Context(), ownerFrom(r), id, services.MovementPatch{
		Amount:      amt,
		Date:        date,
		Description: sanitizeOptional(req.Description),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMovementResponse(m))
}

func (s *Server) handleDeleteMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.Envelope.DeleteMovement(r.Context(), ownerFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
