package core

// LineItemView is a line item together with the spend derived from its
// movements.
type LineItemView struct {
	LineItem
	Spent      Money
	Remaining  Money // budgeted minus spent, negative when over budget
	OverBudget bool
	Movements  int
}

// MonthOverview is the recomputed state of one envelope budget month.
type MonthOverview struct {
	Month                    BudgetMonth
	LineItems                []LineItemView
	TotalBudgeted            Money
	TotalSpent               Money
	MarginRemaining          Money // TotalBudgeted - TotalSpent
	DisposableAfterRealSpend Money // Revenue - TotalSpent
	Unallocated              Money // Revenue - TotalBudgeted
}

// SpentByLineItem sums movement amounts per line item.
func SpentByLineItem(movements []Movement) map[int64]Money {
	out := make(map[int64]Money)
	for _, m := range movements {
		out[m.LineItemID] = out[m.LineItemID].Add(m.Amount)
	}
	return out
}

// NewLineItemView derives the spend of li from movements. Movements of
// other line items are ignored.
func NewLineItemView(li LineItem, movements []Movement) LineItemView {
	v := LineItemView{LineItem: li}
	for _, m := range movements {
		if m.LineItemID != li.ID {
			continue
		}
		v.Spent = v.Spent.Add(m.Amount)
		v.Movements++
	}
	v.Remaining = li.Budgeted.Sub(v.Spent)
	v.OverBudget = v.Spent.Cents > li.Budgeted.Cents
	return v
}

// BuildMonthOverview recomputes every aggregate of a budget month from its
// line items and movements. Stored counters are never consulted.
func BuildMonthOverview(month BudgetMonth, items []LineItem, movements []Movement) MonthOverview {
	ov := MonthOverview{Month: month, LineItems: make([]LineItemView, 0, len(items))}
	for _, li := range items {
		v := NewLineItemView(li, movements)
		ov.LineItems = append(ov.LineItems, v)
		ov.TotalBudgeted = ov.TotalBudgeted.Add(li.Budgeted)
		ov.TotalSpent = ov.TotalSpent.Add(v.Spent)
	}
	ov.MarginRemaining = ov.TotalBudgeted.Sub(ov.TotalSpent)
	ov.DisposableAfterRealSpend = month.Revenue.Sub(ov.TotalSpent)
	ov.Unallocated = month.Revenue.Sub(ov.TotalBudgeted)
	return ov
}

// CheckCap verifies that committed+requested fits in the month revenue.
func CheckCap(month BudgetMonth, committed, requested Money) error {
	if committed.Add(requested).Cents > month.Revenue.Cents {
		return &CapExceededError{
			BudgetMonthID: month.ID,
			Revenue:       month.Revenue,
			Committed:     committed,
			Requested:     requested,
		}
	}
	return nil
}
