package core

import "testing"

func cents(c int64) Money { return Money{Cents: c} }

func TestReconcile(t *testing.T) {
	src := IncomeSource{ID: 1, OwnerID: "u1", InitialAmount: cents(100000)}
	expenses := []Expense{
		{SourceID: 1, Amount: cents(30000)},
		{SourceID: 1, Amount: cents(20000)},
		{SourceID: 2, Amount: cents(99999)}, // other source
	}

	tests := []struct {
		name      string
		stored    int64
		transfers []Transfer
		want      int64
		drifted   bool
	}{
		{name: "in sync", stored: 50000, want: 50000},
		{name: "within tolerance", stored: 50001, want: 50001},
		{name: "stale high", stored: 100000, want: 50000, drifted: true},
		{name: "stale low", stored: 49998, want: 50000, drifted: true},
		{
			name:   "outgoing and incoming transfers",
			stored: 50000,
			transfers: []Transfer{
				{SourceID: 1, DestinationID: 2, Amount: cents(15000)},
				{SourceID: 3, DestinationID: 1, Amount: cents(5000)},
				{SourceID: 2, DestinationID: 3, Amount: cents(7000)},
			},
			want:    40000,
			drifted: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := src
			s.AvailableBalance = cents(tt.stored)
			got := Reconcile(s, expenses, tt.transfers)
			if got.Balance.Cents != tt.want {
				t.Errorf("balance = %d, want %d", got.Balance.Cents, tt.want)
			}
			if got.WasDrifted != tt.drifted {
				t.Errorf("drifted = %v, want %v", got.WasDrifted, tt.drifted)
			}
			if tt.drifted {
				if got.Drift == nil {
					t.Fatal("expected drift details")
				}
				if got.Drift.Stored.Cents != tt.stored || got.Drift.Authoritative.Cents != tt.want {
					t.Errorf("unexpected drift %+v", *got.Drift)
				}
			} else if got.Drift != nil {
				t.Errorf("unexpected drift %+v", *got.Drift)
			}
		})
	}
}

func TestAuthoritativeBalanceNoOperations(t *testing.T) {
	src := IncomeSource{ID: 7, InitialAmount: cents(1234)}
	if got := AuthoritativeBalance(src, nil, nil); got.Cents != 1234 {
		t.Fatalf("expected 1234, got %d", got.Cents)
	}
}

func TestBuildMonthOverview(t *testing.T) {
	month := BudgetMonth{ID: 1, Revenue: cents(500000)}
	items := []LineItem{
		{ID: 10, Name: "Rent", Budgeted: cents(200000)},
		{ID: 11, Name: "Food", Budgeted: cents(250000)},
	}
	movements := []Movement{
		{LineItemID: 11, Amount: cents(80000)},
		{LineItemID: 11, Amount: cents(200000)},
		{LineItemID: 10, Amount: cents(200000)},
	}

	ov := BuildMonthOverview(month, items, movements)
	if ov.TotalBudgeted.Cents != 450000 {
		t.Errorf("total budgeted = %d", ov.TotalBudgeted.Cents)
	}
	if ov.TotalSpent.Cents != 480000 {
		t.Errorf("total spent = %d", ov.TotalSpent.Cents)
	}
	if ov.MarginRemaining.Cents != -30000 {
		t.Errorf("margin = %d", ov.MarginRemaining.Cents)
	}
	if ov.DisposableAfterRealSpend.Cents != 20000 {
		t.Errorf("disposable = %d", ov.DisposableAfterRealSpend.Cents)
	}
	if ov.Unallocated.Cents != 50000 {
		t.Errorf("unallocated = %d", ov.Unallocated.Cents)
	}
	food := ov.LineItems[1]
	if !food.OverBudget || food.Spent.Cents != 280000 || food.Remaining.Cents != -30000 || food.Movements != 2 {
		t.Errorf("unexpected food view %+v", food)
	}
	if ov.LineItems[0].OverBudget {
		t.Errorf("rent spent exactly its budget and must not be over budget")
	}
}

func TestCheckCap(t *testing.T) {
	month := BudgetMonth{ID: 3, Revenue: cents(500000)}
	if err := CheckCap(month, cents(450000), cents(50000)); err != nil {
		t.Fatalf("exact fit must pass, got %v", err)
	}
	err := CheckCap(month, cents(450000), cents(60000))
	capErr, ok := err.(*CapExceededError)
	if !ok {
		t.Fatalf("expected CapExceededError, got %v", err)
	}
	if capErr.Excess().Cents != 10000 {
		t.Fatalf("excess = %d, want 10000", capErr.Excess().Cents)
	}
}
