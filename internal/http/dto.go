package http

import (
	"time"

	"recettes/internal/core"
)

// Request bodies. Amounts are decimal strings ("12.34" or "12,34") and
// dates are YYYY-MM-DD.
type (
	sourceRequest struct {
		Label         string `json:"label"`
		InitialAmount string `json:"initial_amount"`
	}

	sourcePatchRequest struct {
		Label         *string `json:"label"`
		InitialAmount *string `json:"initial_amount"`
	}

	expenseRequest struct {
		SourceID    int64  `json:"source_id"`
		Amount      string `json:"amount"`
		Date        string `json:"date"`
		Label       string `json:"label"`
		Description string `json:"description"`
		Category    string `json:"category"`
		ReceiptRef  string `json:"receipt_ref"`
	}

	expensePatchRequest struct {
		SourceID    *int64  `json:"source_id"`
		Amount      *string `json:"amount"`
		Date        *string `json:"date"`
		Label       *string `json:"label"`
		Description *string `json:"description"`
		Category    *string `json:"category"`
		ReceiptRef  *string `json:"receipt_ref"`
	}

	transferRequest struct {
		SourceID      int64  `json:"source_id"`
		DestinationID int64  `json:"destination_id"`
		Amount        string `json:"amount"`
		Date          string `json:"date"`
		Description   string `json:"description"`
	}

	budgetMonthRequest struct {
		Year    int     `json:"year"`
		Month   int     `json:"month"`
		Revenue *string `json:"revenue"`
	}

	lineItemRequest struct {
		Name     string `json:"name"`
		Budgeted string `json:"budgeted_amount"`
		Kind     string `json:"kind"`
	}

	lineItemPatchRequest struct {
		Name     *string `json:"name"`
		Budgeted *string `json:"budgeted_amount"`
		Kind     *string `json:"kind"`
		Status   *string `json:"status"`
	}

	movementRequest struct {
		Amount      string `json:"amount"`
		Date        string `json:"date"`
		Description string `json:"description"`
	}

	movementPatchRequest struct {
		Amount      *string `json:"amount"`
		Date        *string `json:"date"`
		Description *string `json:"description"`
	}
)

// amount is a Money rendered both as cents and as a decimal string.
type amount struct {
	Cents   int64  `json:"cents"`
	Decimal string `json:"decimal"`
}

func newAmount(m core.Money) amount {
	return amount{Cents: m.Cents, Decimal: m.String()}
}

type sourceResponse struct {
	ID               int64     `json:"id"`
	Label            string    `json:"label"`
	InitialAmount    amount    `json:"initial_amount"`
	AvailableBalance amount    `json:"available_balance"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newSourceResponse(s core.IncomeSource) sourceResponse {
	return sourceResponse{
		ID:               s.ID,
		Label:            s.Label,
		InitialAmount:    newAmount(s.InitialAmount),
		AvailableBalance: newAmount(s.AvailableBalance),
		Status:           string(s.Status),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func newSourceResponses(sources []core.IncomeSource) []sourceResponse {
	out := make([]sourceResponse, 0, len(sources))
	for _, s := range sources {
		out = append(out, newSourceResponse(s))
	}
	return out
}

type driftResponse struct {
	SourceID      int64  `json:"source_id"`
	Stored        amount `json:"stored"`
	Authoritative amount `json:"authoritative"`
	Delta         amount `json:"delta"`
}

func newDriftResponses(drifts []core.DriftCorrected) []driftResponse {
	out := make([]driftResponse, 0, len(drifts))
	for _, d := range drifts {
		out = append(out, driftResponse{
			SourceID:      d.SourceID,
			Stored:        newAmount(d.Stored),
			Authoritative: newAmount(d.Authoritative),
			Delta:         newAmount(d.Delta()),
		})
	}
	return out
}

type expenseResponse struct {
	ID          int64     `json:"id"`
	SourceID    int64     `json:"source_id"`
	Amount      amount    `json:"amount"`
	Date        string    `json:"date"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	ReceiptRef  string    `json:"receipt_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		SourceID:    e.SourceID,
		Amount:      newAmount(e.Amount),
		Date:        e.Date.String(),
		Label:       e.Label,
		Description: e.Description,
		Category:    e.Category,
		ReceiptRef:  e.ReceiptRef,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

type transferResponse struct {
	ID            int64     `json:"id"`
	SourceID      int64     `json:"source_id"`
	DestinationID int64     `json:"destination_id"`
	Amount        amount    `json:"amount"`
	Date          string    `json:"date"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newTransferResponse(t core.Transfer) transferResponse {
	return transferResponse{
		ID:            t.ID,
		SourceID:      t.SourceID,
		DestinationID: t.DestinationID,
		Amount:        newAmount(t.Amount),
		Date:          t.Date.String(),
		Description:   t.Description,
		CreatedAt:     t.CreatedAt,
	}
}

type budgetMonthResponse struct {
	ID        int64     `json:"id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Revenue   amount    `json:"revenue"`
	CreatedAt time.Time `json:"created_at"`
}

func newBudgetMonthResponse(b core.BudgetMonth) budgetMonthResponse {
	return budgetMonthResponse{
		ID:        b.ID,
		Year:      b.Year,
		Month:     b.Month,
		Revenue:   newAmount(b.Revenue),
		CreatedAt: b.CreatedAt,
	}
}

type lineItemResponse struct {
	ID            int64   `json:"id"`
	BudgetMonthID int64   `json:"budget_month_id"`
	Name          string  `json:"name"`
	Budgeted      amount  `json:"budgeted_amount"`
	Kind          string  `json:"kind"`
	Status        string  `json:"status"`
	Spent         *amount `json:"spent,omitempty"`
	Remaining     *amount `json:"remaining,omitempty"`
	OverBudget    bool    `json:"over_budget"`
	Movements     int     `json:"movements"`
}

func newLineItemResponse(li core.LineItem) lineItemResponse {
	return lineItemResponse{
		ID:            li.ID,
		BudgetMonthID: li.BudgetMonthID,
		Name:          li.Name,
		Budgeted:      newAmount(li.Budgeted),
		Kind:          string(li.Kind),
		Status:        string(li.Status),
	}
}

func newLineItemViewResponse(v core.LineItemView) lineItemResponse {
	out := newLineItemResponse(v.LineItem)
	spent, remaining := newAmount(v.Spent), newAmount(v.Remaining)
	out.Spent = &spent
	out.Remaining = &remaining
	out.OverBudget = v.OverBudget
	out.Movements = v.Movements
	return out
}

func newLineItemViewResponses(views []core.LineItemView) []lineItemResponse {
	out := make([]lineItemResponse, 0, len(views))
	for _, v := range views {
		out = append(out, newLineItemViewResponse(v))
	}
	return out
}

type movementResponse struct {
	ID          int64     `json:"id"`
	LineItemID  int64     `json:"line_item_id"`
	Amount      amount    `json:"amount"`
	Date        string    `json:"date"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newMovementResponse(m core.Movement) movementResponse {
	return movementResponse{
		ID:          m.ID,
		LineItemID:  m.LineItemID,
		Amount:      newAmount(m.Amount),
		Date:        m.Date.String(),
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

type monthOverviewResponse struct {
	Month                    budgetMonthResponse `json:"month"`
	LineItems                []lineItemResponse  `json:"line_items"`
	TotalBudgeted            amount              `json:"total_budgeted"`
	TotalSpent               amount              `json:"total_spent"`
	MarginRemaining          amount              `json:"margin_remaining"`
	DisposableAfterRealSpend amount              `json:"disposable_after_real_spend"`
	Unallocated              amount              `json:"unallocated"`
}

func newMonthOverviewResponse(ov core.MonthOverview) monthOverviewResponse {
	return monthOverviewResponse{
		Month:                    newBudgetMonthResponse(ov.Month),
		LineItems:                newLineItemViewResponses(ov.LineItems),
		TotalBudgeted:            newAmount(ov.TotalBudgeted),
		TotalSpent:               newAmount(ov.TotalSpent),
		MarginRemaining:          newAmount(ov.MarginRemaining),
		DisposableAfterRealSpend: newAmount(ov.DisposableAfterRealSpend),
		Unallocated:              newAmount(ov.Unallocated),
	}
}
