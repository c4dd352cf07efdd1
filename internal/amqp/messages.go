package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"recettes/internal/core"
)

type EventType string

const (
	EventDriftCorrected EventType = "drift_corrected"
	EventReceiptSync    EventType = "receipt_sync"
	EventPartialFailure EventType = "partial_failure"
)

// LedgerEvent is the envelope published for every ledger notification.
// Only the fields relevant to Type are set.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	OwnerID   string    `json:"owner_id"`
	Timestamp time.Time `json:"timestamp"`

	SourceID      int64 `json:"source_id,omitempty"`
	DestinationID int64 `json:"destination_id,omitempty"`

	// drift_corrected
	StoredCents        int64 `json:"stored_cents,omitempty"`
	AuthoritativeCents int64 `json:"authoritative_cents,omitempty"`

	// receipt_sync
	ExpenseID  int64  `json:"expense_id,omitempty"`
	ReceiptRef string `json:"receipt_ref,omitempty"`

	// partial_failure
	OperationID string `json:"operation_id,omitempty"`
	Operation   string `json:"operation,omitempty"`
	TransferID  int64  `json:"transfer_id,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	FailedLeg   string `json:"failed_leg,omitempty"`
	Compensated bool   `json:"compensated,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

func newEvent(t EventType, ownerID string) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      t,
		OwnerID:   ownerID,
		Timestamp: time.Now().UTC(),
	}
}

func NewDriftCorrectedEvent(d core.DriftCorrected) *LedgerEvent {
	ev := newEvent(EventDriftCorrected, d.OwnerID)
	ev.SourceID = d.SourceID
	ev.StoredCents = d.Stored.Cents
	ev.AuthoritativeCents = d.Authoritative.Cents
	return ev
}

// NewReceiptSyncEvent asks the receipt keeper to refresh the receipt linked
// to e.
func NewReceiptSyncEvent(e core.Expense) *LedgerEvent {
	ev := newEvent(EventReceiptSync, e.OwnerID)
	ev.SourceID = e.SourceID
	ev.ExpenseID = e.ID
	ev.ReceiptRef = e.ReceiptRef
	ev.AmountCents = e.Amount.Cents
	return ev
}

func NewPartialFailureEvent(ownerID string, pf *core.PartialFailureError) *LedgerEvent {
	ev := newEvent(EventPartialFailure, ownerID)
	ev.OperationID = pf.OperationID
	ev.Operation = pf.Operation
	ev.TransferID = pf.TransferID
	ev.SourceID = pf.SourceID
	ev.DestinationID = pf.DestinationID
	ev.AmountCents = pf.Amount.Cents
	ev.FailedLeg = string(pf.FailedLeg)
	ev.Compensated = pf.Compensated
	ev.Detail = pf.Error()
	return ev
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
