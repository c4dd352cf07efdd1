package core

import (
	"errors"
	"strings"
	"time"
)

const (
	SourceOpen   SourceStatus = "open"
	SourceClosed SourceStatus = "closed"

	Progressive LineItemKind = "progressive"
	OneOff      LineItemKind = "one_off"

	InProgress LineItemStatus = "in_progress"
	Completed  LineItemStatus = "completed"
	Cancelled  LineItemStatus = "cancelled"
)

type (
	SourceStatus   string
	LineItemKind   string
	LineItemStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// IncomeSource is a funded pool ("recette"). AvailableBalance is a
	// projection of InitialAmount and the operations applied against it.
	IncomeSource struct {
		ID               int64
		OwnerID          string
		Label            string
		InitialAmount    Money
		AvailableBalance Money
		Status           SourceStatus
		CreatedAt        time.Time
		UpdatedAt        time.Time
	}

	// Expense is a debit against exactly one income source ("depense").
	Expense struct {
		ID          int64
		OwnerID     string
		SourceID    int64
		Amount      Money
		Date        Date
		Label       string
		Description string
		Category    string
		ReceiptRef  string // optional link to a receipt record kept elsewhere
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Transfer struct {
		ID            int64
		OwnerID       string
		SourceID      int64
		DestinationID int64
		Amount        Money
		Date          Date
		Description   string
		CreatedAt     time.Time
	}

	// BudgetMonth is the envelope for one (year, month). Revenue is fixed
	// once the month exists.
	BudgetMonth struct {
		ID        int64
		OwnerID   string
		Year      int
		Month     int
		Revenue   Money
		CreatedAt time.Time
	}

	LineItem struct {
		ID            int64
		OwnerID       string
		BudgetMonthID int64
		Name          string
		Budgeted      Money
		Kind          LineItemKind
		Status        LineItemStatus
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	Movement struct {
		ID          int64
		OwnerID     string
		LineItemID  int64
		Amount      Money
		Date        Date
		Description string
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrEmptyLabel        = errors.New("empty label")
	ErrEmptyName         = errors.New("empty name")
	ErrMissingOwner      = errors.New("missing owner")
	ErrMissingSource     = errors.New("missing income source")
	ErrSameSource        = errors.New("source and destination must differ")
	ErrSourceClosed      = errors.New("income source is closed")
	ErrSourceReferenced  = errors.New("income source is referenced by transfers")
	ErrInsufficientFunds = errors.New("insufficient available balance")
	ErrMissingRevenue    = errors.New("revenue is required to create a budget month")
	ErrLineItemHasSpend  = errors.New("line item still has movements")
	ErrLineItemClosed    = errors.New("line item is cancelled")
	ErrInvalidKind       = errors.New("invalid line item kind")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid line item status transition")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }

// Sum adds up amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

func (s SourceStatus) Valid() bool {
	return s == SourceOpen || s == SourceClosed
}

func (s IncomeSource) IsClosed() bool { return s.Status == SourceClosed }

func (s IncomeSource) Validate() error {
	if strings.TrimSpace(s.OwnerID) == "" {
		return Invalid("owner_id", ErrMissingOwner)
	}
	if strings.TrimSpace(s.Label) == "" {
		return Invalid("label", ErrEmptyLabel)
	}
	if err := s.InitialAmount.Validate(); err != nil {
		return Invalid("initial_amount", err)
	}
	if !s.Status.Valid() {
		return Invalid("status", ErrInvalidStatus)
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return Invalid("owner_id", ErrMissingOwner)
	}
	if e.SourceID == 0 {
		return Invalid("source_id", ErrMissingSource)
	}
	if err := e.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if err := e.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if strings.TrimSpace(e.Label) == "" {
		return Invalid("label", ErrEmptyLabel)
	}
	if len(e.Description) > 500 {
		return Invalid("description", errors.New("description too long (max 500 characters)"))
	}
	return nil
}

func (t Transfer) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return Invalid("owner_id", ErrMissingOwner)
	}
	if t.SourceID == 0 {
		return Invalid("source_id", ErrMissingSource)
	}
	if t.DestinationID == 0 {
		return Invalid("destination_id", ErrMissingSource)
	}
	if t.SourceID == t.DestinationID {
		return Invalid("destination_id", ErrSameSource)
	}
	if err := t.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if err := t.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	return nil
}

func (b BudgetMonth) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return Invalid("owner_id", ErrMissingOwner)
	}
	if b.Year < 1 {
		return Invalid("year", errors.New("invalid year"))
	}
	if b.Month < 1 || b.Month > 12 {
		return Invalid("month", ErrInvalidMonth)
	}
	if err := b.Revenue.Validate(); err != nil {
		return Invalid("revenue", err)
	}
	return nil
}

func (k LineItemKind) Valid() bool {
	return k == Progressive || k == OneOff
}

func (s LineItemStatus) Valid() bool {
	return s == InProgress || s == Completed || s == Cancelled
}

// CanTransition reports whether a line item may move from s to next.
// in_progress is the only state with outgoing edges.
func (s LineItemStatus) CanTransition(next LineItemStatus) bool {
	if s == next {
		return true
	}
	return s == InProgress && (next == Completed || next == Cancelled)
}

func (li LineItem) Validate() error {
	if strings.TrimSpace(li.OwnerID) == "" {
		return Invalid("owner_id", ErrMissingOwner)
	}
	if strings.TrimSpace(li.Name) == "" {
		return Invalid("name", ErrEmptyName)
	}
	if err := li.Budgeted.Validate(); err != nil {
		return Invalid("budgeted_amount", err)
	}
	if !li.Kind.Valid() {
		return Invalid("kind", ErrInvalidKind)
	}
	if !li.Status.Valid() {
		return Invalid("status", ErrInvalidStatus)
	}
	return nil
}

func (m Movement) Validate() error {
	if strings.TrimSpace(m.OwnerID) == "" {
		return Invalid("owner_id", ErrMissingOwner)
	}
	if err := m.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if err := m.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	return nil
}
