package services

import (
	"errors"
	"testing"

	"recettes/internal/amqp"
	"recettes/internal/core"
	"recettes/internal/repository"
)

func (f *fixture) transfer(t *testing.T, src, dst, amount int64) core.Transfer {
	t.Helper()
	tr, err := f.ledger.Transfers.CreateTransfer(f.ctx, owner, TransferInput{
		SourceID: src, DestinationID: dst, Amount: cents(amount), Date: today(),
	})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	return tr
}

func (f *fixture) transferCount(t *testing.T) int {
	t.Helper()
	list, err := f.store.ListTransfers(f.ctx, owner, repository.TransferFilter{})
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	return len(list)
}

func requirePartialFailure(t *testing.T, err error, leg core.Leg, compensated bool) *core.PartialFailureError {
	t.Helper()
	var pf *core.PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("expected *core.PartialFailureError, got %T: %v", err, err)
	}
	if pf.FailedLeg != leg {
		t.Errorf("failed leg = %s, want %s", pf.FailedLeg, leg)
	}
	if pf.Compensated != compensated {
		t.Errorf("compensated = %v, want %v", pf.Compensated, compensated)
	}
	if !errors.Is(err, errInjected) {
		t.Errorf("partial failure should wrap the leg error, got %v", pf.Err)
	}
	return pf
}

func TestTransferCreateAndDelete(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "Courant", 50000)
	b := f.source(t, "Epargne", 10000)

	tr := f.transfer(t, a.ID, b.ID, 15000)
	if got := f.reconciled(t, a.ID); got != 35000 {
		t.Errorf("source balance = %d, want 35000", got)
	}
	if got := f.reconciled(t, b.ID); got != 25000 {
		t.Errorf("destination balance = %d, want 25000", got)
	}

	got, err := f.ledger.Transfers.GetTransfer(f.ctx, owner, tr.ID)
	if err != nil || got.Amount.Cents != 15000 {
		t.Fatalf("get transfer = %+v, %v", got, err)
	}
	for _, id := range []int64{a.ID, b.ID} {
		list, err := f.ledger.Transfers.ListTransfers(f.ctx, owner, repository.TransferFilter{SourceID: id})
		if err != nil || len(list) != 1 {
			t.Errorf("transfers touching %d = %v, %v", id, list, err)
		}
	}

	if err := f.ledger.Transfers.DeleteTransfer(f.ctx, owner, tr.ID); err != nil {
		t.Fatalf("delete transfer: %v", err)
	}
	if got := f.reconciled(t, a.ID); got != 50000 {
		t.Errorf("source balance after delete = %d, want 50000", got)
	}
	if got := f.reconciled(t, b.ID); got != 10000 {
		t.Errorf("destination balance after delete = %d, want 10000", got)
	}
	if n := f.transferCount(t); n != 0 {
		t.Errorf("transfer still stored: %d", n)
	}
	if n := len(f.events.ofType(amqp.EventDriftCorrected)); n != 0 {
		t.Errorf("no drift expected, got %d", n)
	}
}

func TestTransfersConserveTotal(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A", 40000)
	b := f.source(t, "B", 25000)
	c := f.source(t, "C", 5000)
	const total = 70000

	f.transfer(t, a.ID, b.ID, 1234)
	f.transfer(t, b.ID, c.ID, 20000)
	f.transfer(t, c.ID, a.ID, 999)
	tr := f.transfer(t, a.ID, c.ID, 38000)
	if err := f.ledger.Transfers.DeleteTransfer(f.ctx, owner, tr.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	sources, err := f.ledger.Income.ListIncomeSources(f.ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var sum int64
	for _, s := range sources {
		sum += s.AvailableBalance.Cents
	}
	if sum != total {
		t.Fatalf("sum of balances = %d, want %d", sum, total)
	}
}

func TestCreateTransferValidation(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A", 1000)
	b := f.source(t, "B", 1000)
	closed := f.source(t, "Closed", 1000)
	if _, err := f.ledger.Income.CloseIncomeSource(f.ctx, owner, closed.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	tests := []struct {
		name   string
		in     TransferInput
		target error
	}{
		{"same source", TransferInput{SourceID: a.ID, DestinationID: a.ID, Amount: cents(10), Date: today()}, core.ErrSameSource},
		{"zero amount", TransferInput{SourceID: a.ID, DestinationID: b.ID, Date: today()}, core.ErrInvalidAmount},
		{"missing destination", TransferInput{SourceID: a.ID, Amount: cents(10), Date: today()}, core.ErrMissingSource},
		{"insufficient funds", TransferInput{SourceID: a.ID, DestinationID: b.ID, Amount: cents(1001), Date: today()}, core.ErrInsufficientFunds},
		{"closed source", TransferInput{SourceID: closed.ID, DestinationID: b.ID, Amount: cents(10), Date: today()}, core.ErrSourceClosed},
		{"closed destination", TransferInput{SourceID: a.ID, DestinationID: closed.ID, Amount: cents(10), Date: today()}, core.ErrSourceClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Transfers.CreateTransfer(f.ctx, owner, tt.in)
			requireValidation(t, err, tt.target)
		})
	}

	_, err := f.ledger.Transfers.CreateTransfer(f.ctx, owner, TransferInput{SourceID: a.ID, DestinationID: 999, Amount: cents(10), Date: today()})
	requireNotFound(t, err)

	if n := f.transferCount(t); n != 0 {
		t.Errorf("rejected transfers must not be persisted, got %d", n)
	}
	if got := f.stored(t, a.ID); got != 1000 {
		t.Errorf("source balance changed to %d", got)
	}
}

func TestCreateTransferAllowsExactBalance(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A", 1000)
	b := f.source(t, "B", 1)
	f.transfer(t, a.ID, b.ID, 1000)
	if got := f.reconciled(t, a.ID); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestCreateTransferChecksReconciledBalance(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A", 1000)
	b := f.source(t, "B", 1000)
	// a stale stored balance must not let the transfer through
	_ = f.store.SetAvailableBalance(f.ctx, owner, a.ID, cents(99999))

	_, err := f.ledger.Transfers.CreateTransfer(f.ctx, owner, TransferInput{
		SourceID: a.ID, DestinationID: b.ID, Amount: cents(5000), Date: today(),
	})
	requireValidation(t, err, core.ErrInsufficientFunds)
}

func TestCreateTransferDestinationLegCompensated(t *testing.T) {
	f := newFixture(t)
	f.ledger.Transfers.newOpID = func() string { return "op-1" }
	a := f.source(t, "A", 50000)
	b := f.source(t, "B", 10000)
	f.repo.failIncrement[b.ID] = errInjected

	_, err := f.ledger.Transfers.CreateTransfer(f.ctx, owner, TransferInput{
		SourceID: a.ID, DestinationID: b.ID, Amount: cents(15000), Date: today(),
	})
	pf := requirePartialFailure(t, err, core.LegDestination, true)
	if pf.OperationID != "op-1" || pf.Operation != opCreateTransfer {
		t.Errorf("unexpected partial failure %+v", pf)
	}

	if got := f.stored(t, a.ID); got != 50000 {
		t.Errorf("source not restored: %d", got)
	}
	if got := f.stored(t, b.ID); got != 10000 {
		t.Errorf("destination changed: %d", got)
	}
	if n := f.transferCount(t); n != 0 {
		t.Errorf("record should be removed, %d left", n)
	}

	evs := f.events.ofType(amqp.EventPartialFailure)
	if len(evs) != 1 || evs[0].OperationID != "op-1" || evs[0].FailedLeg != string(core.LegDestination) || !evs[0].Compensated {
		t.Fatalf("unexpected partial failure events %+v", evs)
	}
}

func TestCreateTransferCompensationFailureIsHealedByReconciliation(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A", 50000)
	b := f.source(t, "B", 10000)
	f.repo.failIncrement[a.ID] = errInjected
	f.repo.failIncrement[b.ID] = errInjected

	_, err := f.ledger.Transfers.CreateTransfer(f.ctx, owner, TransferInput{
		SourceID: a.ID, DestinationID: b.ID, Amount: cents(15000), Date: today(),
	})
	pf := requirePartialFailure(t, err, core.LegDestination, false)
	if pf.CompensateErr == nil {
		t.Error("compensation error should be reported")
	}
	if n := f.transferCount(t); n != 1 {
		t.Fatalf("record should remain, got %d", n)
	}

	// the record stays, so reconciliation credits the destination
	if got := f.reconciled(t, a.ID); got != 35000 {
		t.Errorf("source = %d, want 35000", got)
	}
	if got := f.reconciled(t, b.ID); got != 25000 {
		t.Errorf("destination = %d, want 25000", got)
	}
	if n := len(f.events.ofType(amqp.EventDriftCorrected)); n != 1 {
		t.Errorf("expected one drift correction, got %d", n)
	}
}

func TestCreateTransferSourceLegFailure(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A", 50000)
	b := f.source(t, "B", 10000)
	f.repo.failDecrement[a.ID] = errInjected

	_, err := f.ledger.Transfers.CreateTransfer(f.ctx, owner, TransferInput{
		SourceID: a.ID, DestinationID: b.ID, Amount: cents(100), Date: today(),
	})
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	var pf *core.PartialFailureError
	if errors.As(err, &pf) {
		t.Fatalf("nothing moved, no partial failure expected: %v", pf)
	}
	if n := f.transferCount(t); n != 0 {
		t.Errorf("record should be removed, %d left", n)
	}

	f.repo.failDeleteTransfer = errInjected
	_, err = f.ledger.Transfers.CreateTransfer(f.ctx, owner, TransferInput{
		SourceID: a.ID, DestinationID: b.ID, Amount: cents(100), Date: today(),
	})
	requirePartialFailure(t, err, core.LegSource, false)
	if n := f.transferCount(t); n != 1 {
		t.Errorf("orphan record expected, got %d", n)
	}
}

func TestDeleteTransferDestinationLegCompensated(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A", 50000)
	b := f.source(t, "B", 10000)
	tr := f.transfer(t, a.ID, b.ID, 15000)
	f.repo.failDecrement[b.ID] = errInjected

	err := f.ledger.Transfers.DeleteTransfer(f.ctx, owner, tr.ID)
	pf := requirePartialFailure(t, err, core.LegDestination, true)
	if pf.Operation != opDeleteTransfer || pf.TransferID != tr.ID {
		t.Errorf("unexpected partial failure %+v", pf)
	}
	if got := f.stored(t, a.ID); got != 35000 {
		t.Errorf("source = %d, want 35000", got)
	}
	if got := f.stored(t, b.ID); got != 25000 {
		t.Errorf("destination = %d, want 25000", got)
	}
	if n := f.transferCount(t); n != 1 {
		t.Errorf("record should remain, got %d", n)
	}
}

func TestDeleteTransferRecordLegCompensated(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A", 50000)
	b := f.source(t, "B", 10000)
	tr := f.transfer(t, a.ID, b.ID, 15000)
	f.repo.failDeleteTransfer = errInjected

	err := f.ledger.Transfers.DeleteTransfer(f.ctx, owner, tr.ID)
	requirePartialFailure(t, err, core.LegRecord, true)
	if got := f.stored(t, a.ID); got != 35000 {
		t.Errorf("source = %d, want 35000", got)
	}
	if got := f.stored(t, b.ID); got != 25000 {
		t.Errorf("destination = %d, want 25000", got)
	}
	if n := len(f.events.ofType(amqp.EventPartialFailure)); n != 1 {
		t.Errorf("expected one partial failure event, got %d", n)
	}
}

func TestDeleteTransferSourceLegFailure(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A", 50000)
	b := f.source(t, "B", 10000)
	tr := f.transfer(t, a.ID, b.ID, 15000)
	f.repo.failIncrement[a.ID] = errInjected

	err := f.ledger.Transfers.DeleteTransfer(f.ctx, owner, tr.ID)
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	var pf *core.PartialFailureError
	if errors.As(err, &pf) {
		t.Fatalf("nothing moved, no partial failure expected")
	}
	if got := f.stored(t, a.ID); got != 35000 {
		t.Errorf("source = %d, want 35000", got)
	}
}

func TestDeleteTransferNotFound(t *testing.T) {
	f := newFixture(t)
	requireNotFound(t, f.ledger.Transfers.DeleteTransfer(f.ctx, owner, 12))
	_, err := f.ledger.Transfers.GetTransfer(f.ctx, owner, 12)
	requireNotFound(t, err)
}
