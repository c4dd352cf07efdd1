package log

import "recettes/internal/core"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldOperationID   = "operation_id"
	FieldOwnerID       = "owner_id"
	FieldSourceID      = "source_id"
	FieldDestinationID = "destination_id"
	FieldTransferID    = "transfer_id"
	FieldExpenseID     = "expense_id"
	FieldLineItemID    = "line_item_id"
	FieldBudgetMonthID = "budget_month_id"
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldAmountCents   = "amount_cents"
	FieldStoredCents   = "stored_cents"
	FieldAuthCents     = "authoritative_cents"
	FieldFailedLeg     = "failed_leg"
	FieldCompensated   = "compensated"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentLedger     = "ledger"
	ComponentReconciler = "reconciler"
	ComponentTransfer   = "transfer"
	ComponentEnvelope   = "envelope"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentCache      = "cache"
	ComponentBackend    = "backend"
	ComponentCLI        = "cli"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpReconcile = "reconcile"
	OpPublish   = "publish"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithOwner(ownerID string) LogFields {
	f[FieldOwnerID] = ownerID
	return f
}

func (f LogFields) WithSource(sourceID int64) LogFields {
	f[FieldSourceID] = sourceID
	return f
}

func (f LogFields) WithAmount(m core.Money) LogFields {
	f[FieldAmountCents] = m.Cents
	return f
}

// WithDrift adds the fields of a corrected drift.
func (f LogFields) WithDrift(d core.DriftCorrected) LogFields {
	f[FieldOwnerID] = d.OwnerID
	f[FieldSourceID] = d.SourceID
	f[FieldStoredCents] = d.Stored.Cents
	f[FieldAuthCents] = d.Authoritative.Cents
	return f
}

// WithPartialFailure adds the fields of a half-applied transfer operation.
func (f LogFields) WithPartialFailure(pf *core.PartialFailureError) LogFields {
	f[FieldOperation] = pf.Operation
	f[FieldOperationID] = pf.OperationID
	f[FieldTransferID] = pf.TransferID
	f[FieldSourceID] = pf.SourceID
	f[FieldDestinationID] = pf.DestinationID
	f[FieldAmountCents] = pf.Amount.Cents
	f[FieldFailedLeg] = string(pf.FailedLeg)
	f[FieldCompensated] = pf.Compensated
	return f.WithError(pf.Err)
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
