package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"recettes/internal/core"
	ledgerlog "recettes/internal/log"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Field            string `json:"field,omitempty"`
	Details          any    `json:"details,omitempty"`
}

type capExceededDetails struct {
	BudgetMonthID  int64 `json:"budget_month_id"`
	RevenueCents   int64 `json:"revenue_cents"`
	CommittedCents int64 `json:"committed_cents"`
	RequestedCents int64 `json:"requested_cents"`
	ExcessCents    int64 `json:"excess_cents"`
}

type partialFailureDetails struct {
	OperationID   string `json:"operation_id"`
	Operation     string `json:"operation"`
	TransferID    int64  `json:"transfer_id"`
	SourceID      int64  `json:"source_id"`
	DestinationID int64  `json:"destination_id"`
	AmountCents   int64  `json:"amount_cents"`
	FailedLeg     string `json:"failed_leg"`
	Compensated   bool   `json:"compensated"`
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}

// writeError maps a service error to its HTTP status and body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *core.ValidationError
		ce *core.CapExceededError
		nf *core.NotFoundError
		pf *core.PartialFailureError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:            "validation_error",
			ErrorDescription: ve.Err.Error(),
			Field:            ve.Field,
		})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:            "cap_exceeded",
			ErrorDescription: "budgeted amounts would exceed the month revenue",
			Details: capExceededDetails{
				BudgetMonthID:  ce.BudgetMonthID,
				RevenueCents:   ce.Revenue.Cents,
				CommittedCents: ce.Committed.Cents,
				RequestedCents: ce.Requested.Cents,
				ExcessCents:    ce.Excess().Cents,
			},
		})
	case errors.As(err, &nf):
		writeJSONError(w, http.StatusNotFound, "not_found", nf.Error())
	case errors.As(err, &pf):
		description := "transfer partially applied and compensated"
		if !pf.Compensated {
			description = "transfer partially applied; verify the balances of both sources"
		}
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:            "partial_failure",
			ErrorDescription: description,
			Details: partialFailureDetails{
				OperationID:   pf.OperationID,
				Operation:     pf.Operation,
				TransferID:    pf.TransferID,
				SourceID:      pf.SourceID,
				DestinationID: pf.DestinationID,
				AmountCents:   pf.Amount.Cents,
				FailedLeg:     string(pf.FailedLeg),
				Compensated:   pf.Compensated,
			},
		})
	case errors.Is(err, errBadBody):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		ledgerlog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			ledgerlog.FieldMethod, r.Method,
			ledgerlog.FieldPath, r.URL.Path,
			ledgerlog.FieldError, err)
		writeJSONError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
