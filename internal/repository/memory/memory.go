package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"recettes/internal/core"
	"recettes/internal/repository"
)

// Store keeps every ledger row in process memory. It implements
// repository.Repository and is safe for concurrent use; like the SQL store it
// gives no atomicity across calls.
type Store struct {
	mu     sync.Mutex
	nextID int64
	nowFn  func() time.Time

	sources   map[int64]core.IncomeSource
	expenses  map[int64]core.Expense
	transfers map[int64]core.Transfer
	months    map[int64]core.BudgetMonth
	items     map[int64]core.LineItem
	movements map[int64]core.Movement
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		nowFn:     time.Now,
		sources:   make(map[int64]core.IncomeSource),
		expenses:  make(map[int64]core.Expense),
		transfers: make(map[int64]core.Transfer),
		months:    make(map[int64]core.BudgetMonth),
		items:     make(map[int64]core.LineItem),
		movements: make(map[int64]core.Movement),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func sortedKeys[T any](m map[int64]T) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Income sources

func (s *Store) ListIncomeSources(_ context.Context, ownerID string) ([]core.IncomeSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.IncomeSource{}
	for _, id := range sortedKeys(s.sources) {
		if src := s.sources[id]; src.OwnerID == ownerID {
			out = append(out, src)
		}
	}
	return out, nil
}

func (s *Store) GetIncomeSource(_ context.Context, ownerID string, id int64) (core.IncomeSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok || src.OwnerID != ownerID {
		return core.IncomeSource{}, repository.ErrNotFound
	}
	return src, nil
}

func (s *Store) CreateIncomeSource(_ context.Context, src core.IncomeSource) (core.IncomeSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src.ID = s.id()
	src.CreatedAt = s.nowFn()
	src.UpdatedAt = src.CreatedAt
	s.sources[src.ID] = src
	return src, nil
}

func (s *Store) UpdateIncomeSource(_ context.Context, src core.IncomeSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sources[src.ID]
	if !ok || cur.OwnerID != src.OwnerID {
		return repository.ErrNotFound
	}
	src.AvailableBalance = cur.AvailableBalance
	src.CreatedAt = cur.CreatedAt
	src.UpdatedAt = s.nowFn()
	s.sources[src.ID] = src
	return nil
}

func (s *Store) DeleteIncomeSource(_ context.Context, ownerID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sources[id]
	if !ok || cur.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.sources, id)
	return nil
}

func (s *Store) SetAvailableBalance(_ context.Context, ownerID string, id int64, balance core.Money) error {
	return s.applyBalance(ownerID, id, func(core.Money) core.Money { return balance })
}

func (s *Store) IncrementBalance(_ context.Context, ownerID string, id int64, amount core.Money) error {
	return s.applyBalance(ownerID, id, func(b core.Money) core.Money { return b.Add(amount) })
}

func (s *Store) DecrementBalance(_ context.Context, ownerID string, id int64, amount core.Money) error {
	return s.applyBalance(ownerID, id, func(b core.Money) core.Money { return b.Sub(amount) })
}

func (s *Store) applyBalance(ownerID string, id int64, fn func(core.Money) core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok || src.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	src.AvailableBalance = fn(src.AvailableBalance)
	src.UpdatedAt = s.nowFn()
	s.sources[id] = src
	return nil
}

// Expenses

func (s *Store) ListExpenses(_ context.Context, ownerID string, filter repository.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Expense{}
	for _, id := range sortedKeys(s.expenses) {
		e := s.expenses[id]
		if e.OwnerID == ownerID && filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, ownerID string, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.OwnerID != ownerID {
		return core.Expense{}, repository.ErrNotFound
	}
	return e, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	e.CreatedAt = s.nowFn()
	e.UpdatedAt = e.CreatedAt
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[e.ID]
	if !ok || cur.OwnerID != e.OwnerID {
		return repository.ErrNotFound
	}
	e.CreatedAt = cur.CreatedAt
	e.UpdatedAt = s.nowFn()
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, ownerID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[id]
	if !ok || cur.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

// Transfers

func (s *Store) ListTransfers(_ context.Context, ownerID string, filter repository.TransferFilter) ([]core.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Transfer{}
	for _, id := range sortedKeys(s.transfers) {
		t := s.transfers[id]
		if t.OwnerID == ownerID && filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) GetTransfer(_ context.Context, ownerID string, id int64) (core.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok || t.OwnerID != ownerID {
		return core.Transfer{}, repository.ErrNotFound
	}
	return t, nil
}

func (s *Store) CreateTransfer(_ context.Context, t core.Transfer) (core.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	t.CreatedAt = s.nowFn()
	s.transfers[t.ID] = t
	return t, nil
}

func (s *Store) DeleteTransfer(_ context.Context, ownerID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.transfers[id]
	if !ok || cur.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.transfers, id)
	return nil
}

// Envelope budgets

func (s *Store) GetBudgetMonth(_ context.Context, ownerID string, year, month int) (core.BudgetMonth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bm := range s.months {
		if bm.OwnerID == ownerID && bm.Year == year && bm.Month == month {
			return bm, nil
		}
	}
	return core.BudgetMonth{}, repository.ErrNotFound
}

func (s *Store) GetBudgetMonthByID(_ context.Context, ownerID string, id int64) (core.BudgetMonth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bm, ok := s.months[id]
	if !ok || bm.OwnerID != ownerID {
		return core.BudgetMonth{}, repository.ErrNotFound
	}
	return bm, nil
}

func (s *Store) ListBudgetMonths(_ context.Context, ownerID string) ([]core.BudgetMonth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.BudgetMonth{}
	for _, id := range sortedKeys(s.months) {
		if bm := s.months[id]; bm.OwnerID == ownerID {
			out = append(out, bm)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (s *Store) CreateBudgetMonth(_ context.Context, b core.BudgetMonth) (core.BudgetMonth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bm := range s.months {
		if bm.OwnerID == b.OwnerID && bm.Year == b.Year && bm.Month == b.Month {
			return core.BudgetMonth{}, repository.ErrConflict
		}
	}
	b.ID = s.id()
	b.CreatedAt = s.nowFn()
	s.months[b.ID] = b
	return b, nil
}

func (s *Store) ListLineItems(_ context.Context, ownerID string, budgetMonthID int64) ([]core.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.LineItem{}
	for _, id := range sortedKeys(s.items) {
		li := s.items[id]
		if li.OwnerID == ownerID && li.BudgetMonthID == budgetMonthID {
			out = append(out, li)
		}
	}
	return out, nil
}

func (s *Store) GetLineItem(_ context.Context, ownerID string, id int64) (core.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	li, ok := s.items[id]
	if !ok || li.OwnerID != ownerID {
		return core.LineItem{}, repository.ErrNotFound
	}
	return li, nil
}

func (s *Store) CreateLineItem(_ context.Context, li core.LineItem) (core.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	li.ID = s.id()
	li.CreatedAt = s.nowFn()
	li.UpdatedAt = li.CreatedAt
	s.items[li.ID] = li
	return li, nil
}

func (s *Store) UpdateLineItem(_ context.Context, li core.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[li.ID]
	if !ok || cur.OwnerID != li.OwnerID {
		return repository.ErrNotFound
	}
	li.CreatedAt = cur.CreatedAt
	li.UpdatedAt = s.nowFn()
	s.items[li.ID] = li
	return nil
}

func (s *Store) DeleteLineItem(_ context.Context, ownerID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok || cur.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) ListMovements(_ context.Context, ownerID string, filter repository.MovementFilter) ([]core.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Movement{}
	for _, id := range sortedKeys(s.movements) {
		m := s.movements[id]
		if m.OwnerID != ownerID {
			continue
		}
		if filter.LineItemID != 0 && m.LineItemID != filter.LineItemID {
			continue
		}
		if filter.BudgetMonthID != 0 && s.items[m.LineItemID].BudgetMonthID != filter.BudgetMonthID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) GetMovement(_ context.Context, ownerID string, id int64) (core.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movements[id]
	if !ok || m.OwnerID != ownerID {
		return core.Movement{}, repository.ErrNotFound
	}
	return m, nil
}

func (s *Store) CreateMovement(_ context.Context, m core.Movement) (core.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	m.CreatedAt = s.nowFn()
	s.movements[m.ID] = m
	return m, nil
}

func (s *Store) UpdateMovement(_ context.Context, m core.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.movements[m.ID]
	if !ok || cur.OwnerID != m.OwnerID {
		return repository.ErrNotFound
	}
	m.CreatedAt = cur.CreatedAt
	s.movements[m.ID] = m
	return nil
}

func (s *Store) DeleteMovement(_ context.Context, ownerID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.movements[id]
	if !ok || cur.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.movements, id)
	return nil
}
