package services

import (
	"testing"

	"recettes/internal/amqp"
	"recettes/internal/core"
	"recettes/internal/repository"
)

func TestCreateIncomeSource(t *testing.T) {
	f := newFixture(t)

	src, err := f.ledger.Income.CreateIncomeSource(f.ctx, owner, "  Salaire  ", cents(250000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if src.Label != "Salaire" || src.AvailableBalance.Cents != 250000 || src.Status != core.SourceOpen {
		t.Fatalf("unexpected source %+v", src)
	}

	tests := []struct {
		name    string
		owner   string
		label   string
		initial int64
		target  error
	}{
		{"empty label", owner, " ", 100, core.ErrEmptyLabel},
		{"zero initial", owner, "x", 0, core.ErrInvalidAmount},
		{"missing owner", "", "x", 100, core.ErrMissingOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Income.CreateIncomeSource(f.ctx, tt.owner, tt.label, cents(tt.initial))
			requireValidation(t, err, tt.target)
		})
	}
}

func TestUpdateInitialAmountShiftsBalance(t *testing.T) {
	f := newFixture(t)
	src := f.source(t, "Salaire", 100000)
	f.expense(t, src.ID, 30000)

	initial := cents(120000)
	label := "Salaire net"
	updated, err := f.ledger.Income.UpdateIncomeSource(f.ctx, owner, src.ID, IncomeSourcePatch{Label: &label, InitialAmount: &initial})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Label != label || updated.InitialAmount.Cents != 120000 || updated.AvailableBalance.Cents != 90000 {
		t.Fatalf("unexpected source %+v", updated)
	}
	if stored := f.stored(t, src.ID); stored != 90000 {
		t.Errorf("stored = %d, want 90000", stored)
	}

	_, err = f.ledger.Income.UpdateIncomeSource(f.ctx, owner, 404, IncomeSourcePatch{Label: &label})
	requireNotFound(t, err)
}

func TestSourceEditsKeepConcurrentShifts(t *testing.T) {
	f := newFixture(t)
	src := f.source(t, "Salaire", 100000)

	// another session records an expense while the edit is in flight
	concurrentExpense := func() {
		f.repo.beforeUpdateSource = nil
		if _, err := f.store.CreateExpense(f.ctx, core.Expense{
			OwnerID: owner, SourceID: src.ID, Amount: cents(5000), Date: today(), Label: "café",
		}); err != nil {
			t.Fatalf("concurrent expense: %v", err)
		}
		if err := f.store.DecrementBalance(f.ctx, owner, src.ID, cents(5000)); err != nil {
			t.Fatalf("concurrent decrement: %v", err)
		}
	}

	f.repo.beforeUpdateSource = concurrentExpense
	initial := cents(120000)
	if _, err := f.ledger.Income.UpdateIncomeSource(f.ctx, owner, src.ID, IncomeSourcePatch{InitialAmount: &initial}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if stored := f.stored(t, src.ID); stored != 115000 {
		t.Errorf("stored after update = %d, want 115000", stored)
	}

	f.repo.beforeUpdateSource = concurrentExpense
	if _, err := f.ledger.Income.CloseIncomeSource(f.ctx, owner, src.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if stored := f.stored(t, src.ID); stored != 110000 {
		t.Errorf("stored after close = %d, want 110000", stored)
	}

	if n := len(f.events.ofType(amqp.EventDriftCorrected)); n != 0 {
		t.Errorf("expected no drift corrections, got %d", n)
	}
}

func TestClosedSourceKeepsHistory(t *testing.T) {
	f := newFixture(t)
	src := f.source(t, "Ancien compte", 10000)
	f.expense(t, src.ID, 4000)

	closed, err := f.ledger.Income.CloseIncomeSource(f.ctx, owner, src.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed.IsClosed() || closed.AvailableBalance.Cents != 6000 {
		t.Fatalf("unexpected source %+v", closed)
	}
	// closing twice is a no-op
	if _, err := f.ledger.Income.CloseIncomeSource(f.ctx, owner, src.ID); err != nil {
		t.Fatalf("close again: %v", err)
	}

	_, err = f.ledger.Expenses.CreateExpense(f.ctx, owner, ExpenseInput{SourceID: src.ID, Amount: cents(1), Date: today(), Label: "x"})
	requireValidation(t, err, core.ErrSourceClosed)

	list, _ := f.ledger.Expenses.ListExpenses(f.ctx, owner, repository.ExpenseFilter{SourceID: src.ID})
	if len(list) != 1 {
		t.Errorf("history lost: %d expenses", len(list))
	}
}

func TestDeleteIncomeSourceCascadesExpenses(t *testing.T) {
	f := newFixture(t)
	src := f.source(t, "Prime", 10000)
	other := f.source(t, "Salaire", 10000)
	f.expense(t, src.ID, 100)
	f.expense(t, src.ID, 200)
	kept := f.expense(t, other.ID, 300)

	if err := f.ledger.Income.DeleteIncomeSource(f.ctx, owner, src.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := f.ledger.Income.GetIncomeSource(f.ctx, owner, src.ID)
	requireNotFound(t, err)

	list, _ := f.store.ListExpenses(f.ctx, owner, repository.ExpenseFilter{})
	if len(list) != 1 || list[0].ID != kept.ID {
		t.Fatalf("remaining expenses = %+v", list)
	}
	if _, ok := f.balances.Get(owner, src.ID); ok {
		t.Error("cached balance of a deleted source should be dropped")
	}
}

func TestDeleteReferencedIncomeSource(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A", 10000)
	b := f.source(t, "B", 10000)
	f.transfer(t, a.ID, b.ID, 500)

	for _, id := range []int64{a.ID, b.ID} {
		err := f.ledger.Income.DeleteIncomeSource(f.ctx, owner, id)
		requireValidation(t, err, core.ErrSourceReferenced)
	}
	sources, err := f.ledger.Income.ListIncomeSources(f.ctx, owner)
	if err != nil || len(sources) != 2 {
		t.Fatalf("sources = %v, %v", sources, err)
	}
	requireNotFound(t, f.ledger.Income.DeleteIncomeSource(f.ctx, owner, 404))
}
