package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -5}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		OwnerID:  "u1",
		SourceID: 1,
		Date:     NewDate(2025, 1, 1),
		Label:    "Groceries",
		Amount:   Money{Cents: 100},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		field string
		want  error
		mut   func(e *Expense)
	}{
		{"missing source", "source_id", ErrMissingSource, func(e *Expense) { e.SourceID = 0 }},
		{"zero amount", "amount", ErrInvalidAmount, func(e *Expense) { e.Amount = Money{} }},
		{"negative amount", "amount", ErrInvalidAmount, func(e *Expense) { e.Amount = Money{Cents: -1} }},
		{"empty label", "label", ErrEmptyLabel, func(e *Expense) { e.Label = "  " }},
		{"missing owner", "owner_id", ErrMissingOwner, func(e *Expense) { e.OwnerID = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := good
			tc.mut(&e)
			err := e.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %q, want %q", ve.Field, tc.field)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTransferValidate(t *testing.T) {
	tr := Transfer{OwnerID: "u1", SourceID: 1, DestinationID: 1, Amount: Money{Cents: 10}, Date: NewDate(2025, 3, 1)}
	if err := tr.Validate(); !errors.Is(err, ErrSameSource) {
		t.Fatalf("expected ErrSameSource, got %v", err)
	}
	tr.DestinationID = 2
	if err := tr.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestLineItemStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to LineItemStatus
		ok       bool
	}{
		{InProgress, Completed, true},
		{InProgress, Cancelled, true},
		{InProgress, InProgress, true},
		{Completed, InProgress, false},
		{Cancelled, InProgress, false},
		{Completed, Cancelled, false},
		{Cancelled, Completed, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestStatusValidate(t *testing.T) {
	src := IncomeSource{OwnerID: "u1", Label: "Salary", InitialAmount: Money{Cents: 100}, Status: SourceOpen}
	if err := src.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	src.Status = "frozen"
	if err := src.Validate(); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	li := LineItem{OwnerID: "u1", Name: "Food", Budgeted: Money{Cents: 100}, Kind: Progressive, Status: Completed}
	if err := li.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	li.Status = "paused"
	if err := li.Validate(); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestBudgetMonthValidate(t *testing.T) {
	bm := BudgetMonth{OwnerID: "u1", Year: 2025, Month: 13, Revenue: Money{Cents: 1}}
	if err := bm.Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	bm.Month = 6
	bm.Revenue = Money{}
	if err := bm.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
