package http

import (
	"net/http"

	"recettes/internal/services"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := expenseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	expenses, err := s.ledger.Expenses.ListExpenses(r.Context(), ownerFrom(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, newExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
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

	e, err := s.ledger.Expenses.CreateExpense(r.Context(), ownerFrom(r), services.ExpenseInput{
		SourceID:    req.SourceID,
		Amount:      amt,
		Date:        date,
		Label:       sanitizeInput(req.Label),
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		ReceiptRef:  sanitizeInput(req.ReceiptRef),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newExpenseResponse(e))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.ledger.Expenses.GetExpense(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseResponse(e))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req expensePatchRequest
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

	e, err := s.ledger.Expenses.UpdateExpense(r.Context(), ownerFrom(r), id, services.ExpensePatch{
		SourceID:    req.SourceID,
		Amount:      amt,
		Date:        date,
		Label:       sanitizeOptional(req.Label),
		Description: sanitizeOptional(req.Description),
		Category:    sanitizeOptional(req.Category),
		ReceiptRef:  sanitizeOptional(req.ReceiptRef),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseResponse(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.Expenses.DeleteExpense(r.Context(), ownerFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
