package memory

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"recettes/internal/core"
)

// Seed is the YAML fixture format accepted by NewFromFile.
type Seed struct {
	Owner    string        `yaml:"owner"`
	Sources  []SeedSource  `yaml:"sources"`
	Expenses []SeedExpense `yaml:"expenses"`
	Budgets  []SeedBudget  `yaml:"budgets"`
}

type SeedSource struct {
	Label   string `yaml:"label"`
	Initial string `yaml:"initial"`
	// Available overrides the stored balance, which lets a fixture start
	// with a drifted projection. Empty means initial minus expenses.
	Available string `yaml:"available"`
	Status    string `yaml:"status"`
}

type SeedExpense struct {
	Source      string `yaml:"source"` // label of the income source
	Amount      string `yaml:"amount"`
	Date        string `yaml:"date"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
}

type SeedBudget struct {
	Year      int            `yaml:"year"`
	Month     int            `yaml:"month"`
	Revenue   string         `yaml:"revenue"`
	LineItems []SeedLineItem `yaml:"line_items"`
}

type SeedLineItem struct {
	Name      string         `yaml:"name"`
	Budgeted  string         `yaml:"budgeted"`
	Kind      string         `yaml:"kind"`
	Status    string         `yaml:"status"`
	Movements []SeedMovement `yaml:"movements"`
}

type SeedMovement struct {
	Amount      string `yaml:"amount"`
	Date        string `yaml:"date"`
	Description string `yaml:"description"`
}

// NewFromFile builds a Store seeded from a YAML fixture. A missing path
// yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := s.Load(context.Background(), seed); err != nil {
		return nil, err
	}
	return s, nil
}

// Load inserts every row of seed.
func (s *Store) Load(ctx context.Context, seed Seed) error {
	if seed.Owner == "" {
		return fmt.Errorf("seed: owner is required")
	}

	byLabel := make(map[string]core.IncomeSource)
	spent := make(map[string]core.Money)
	amounts := make([]core.Money, len(seed.Expenses))
	for i, e := range seed.Expenses {
		amount, err := core.ParseAmount(e.Amount)
		if err != nil {
			return fmt.Errorf("seed expense %q: %w", e.Label, err)
		}
		amounts[i] = amount
		spent[e.Source] = spent[e.Source].Add(amount)
	}

	for _, ss := range seed.Sources {
		initial, err := core.ParseAmount(ss.Initial)
		if err != nil {
			return fmt.Errorf("seed source %q: %w", ss.Label, err)
		}
		available := initial.Sub(spent[ss.Label])
		if ss.Available != "" {
			if available, err = core.ParseAmount(ss.Available); err != nil {
				return fmt.Errorf("seed source %q available: %w", ss.Label, err)
			}
		}
		status := core.SourceOpen
		if ss.Status != "" {
			status = core.SourceStatus(ss.Status)
		}
		src := core.IncomeSource{
			OwnerID:          seed.Owner,
			Label:            ss.Label,
			InitialAmount:    initial,
			AvailableBalance: available,
			Status:           status,
		}
		if err := src.Validate(); err != nil {
			return fmt.Errorf("seed source %q: %w", ss.Label, err)
		}
		src, err = s.CreateIncomeSource(ctx, src)
		if err != nil {
			return err
		}
		byLabel[ss.Label] = src
	}

	for i, se := range seed.Expenses {
		src, ok := byLabel[se.Source]
		if !ok {
			return fmt.Errorf("seed expense %q: unknown source %q", se.Label, se.Source)
		}
		date, err := parseSeedDate(se.Date)
		if err != nil {
			return fmt.Errorf("seed expense %q: %w", se.Label, err)
		}
		e := core.Expense{
			OwnerID:     seed.Owner,
			SourceID:    src.ID,
			Amount:      amounts[i],
			Date:        date,
			Label:       se.Label,
			Description: se.Description,
			Category:    se.Category,
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("seed expense %q: %w", se.Label, err)
		}
		if _, err := s.CreateExpense(ctx, e); err != nil {
			return err
		}
	}

	for _, sb := range seed.Budgets {
		revenue, err := core.ParseAmount(sb.Revenue)
		if err != nil {
			return fmt.Errorf("seed budget %d-%02d: %w", sb.Year, sb.Month, err)
		}
		bm := core.BudgetMonth{OwnerID: seed.Owner, Year: sb.Year, Month: sb.Month, Revenue: revenue}
		if err := bm.Validate(); err != nil {
			return fmt.Errorf("seed budget %d-%02d: %w", sb.Year, sb.Month, err)
		}
		bm, err = s.CreateBudgetMonth(ctx, bm)
		if err != nil {
			return fmt.Errorf("seed budget %d-%02d: %w", sb.Year, sb.Month, err)
		}
		var committed core.Money
		for _, sl := range sb.LineItems {
			budgeted, err := s.loadLineItem(ctx, bm, committed, sl)
			if err != nil {
				return err
			}
			committed = committed.Add(budgeted)
		}
	}
	return nil
}

// loadLineItem inserts one line item and its movements, checking the
// month's revenue cap against the amount already committed.
func (s *Store) loadLineItem(ctx context.Context, bm core.BudgetMonth, committed core.Money, sl SeedLineItem) (core.Money, error) {
	owner := bm.OwnerID
	budgeted, err := core.ParseAmount(sl.Budgeted)
	if err != nil {
		return core.Money{}, fmt.Errorf("seed line item %q: %w", sl.Name, err)
	}
	kind := core.Progressive
	if sl.Kind != "" {
		kind = core.LineItemKind(sl.Kind)
	}
	status := core.InProgress
	if sl.Status != "" {
		status = core.LineItemStatus(sl.Status)
	}
	li := core.LineItem{
		OwnerID: owner, BudgetMonthID: bm.ID, Name: sl.Name,
		Budgeted: budgeted, Kind: kind, Status: status,
	}
	if err := li.Validate(); err != nil {
		return core.Money{}, fmt.Errorf("seed line item %q: %w", sl.Name, err)
	}
	if err := core.CheckCap(bm, committed, budgeted); err != nil {
		return core.Money{}, fmt.Errorf("seed line item %q: %w", sl.Name, err)
	}
	li, err = s.CreateLineItem(ctx, li)
	if err != nil {
		return core.Money{}, err
	}
	for _, sm := range sl.Movements {
		amount, err := core.ParseAmount(sm.Amount)
		if err != nil {
			return core.Money{}, fmt.Errorf("seed movement of %q: %w", sl.Name, err)
		}
		date, err := parseSeedDate(sm.Date)
		if err != nil {
			return core.Money{}, fmt.Errorf("seed movement of %q: %w", sl.Name, err)
		}
		m := core.Movement{
			OwnerID: owner, LineItemID: li.ID, Amount: amount, Date: date, Description: sm.Description,
		}
		if err := m.Validate(); err != nil {
			return core.Money{}, fmt.Errorf("seed movement of %q: %w", sl.Name, err)
		}
		if _, err := s.CreateMovement(ctx, m); err != nil {
			return core.Money{}, err
		}
	}
	return budgeted, nil
}

func parseSeedDate(v string) (core.Date, error) {
	if v == "" {
		return core.Date{Time: time.Now().UTC().Truncate(24 * time.Hour)}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid date %q: %w", v, err)
	}
	return core.Date{Time: t}, nil
}
