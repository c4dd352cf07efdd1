package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"recettes/internal/amqp"
	"recettes/internal/cache"
	"recettes/internal/core"
	ledgerlog "recettes/internal/log"
	"recettes/internal/repository"
	"recettes/internal/repository/memory"
)

const owner = "alice"

var errInjected = errors.New("injected failure")

func cents(c int64) core.Money { return core.Money{Cents: c} }

func today() core.Date { return core.NewDate(2025, 1, 15) }

// recordingPublisher keeps published events and can be told to fail.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(t amqp.EventType) []*amqp.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*amqp.LedgerEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// faultRepo fails selected balance and transfer calls of the wrapped
// repository.
type faultRepo struct {
	repository.Repository

	mu                 sync.Mutex
	failIncrement      map[int64]error
	failDecrement      map[int64]error
	failDeleteTransfer error
	failCreateExpense  error

	// beforeUpdateSource runs inside UpdateIncomeSource, between the
	// service's read and its write.
	beforeUpdateSource func()
}

func newFaultRepo(inner repository.Repository) *faultRepo {
	return &faultRepo{
		Repository:    inner,
		failIncrement: make(map[int64]error),
		failDecrement: make(map[int64]error),
	}
}

func (f *faultRepo) IncrementBalance(ctx context.Context, ownerID string, id int64, amount core.Money) error {
	f.mu.Lock()
	err := f.failIncrement[id]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Repository.IncrementBalance(ctx, ownerID, id, amount)
}

func (f *faultRepo) DecrementBalance(ctx context.Context, ownerID string, id int64, amount core.Money) error {
	f.mu.Lock()
	err := f.failDecrement[id]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Repository.DecrementBalance(ctx, ownerID, id, amount)
}

func (f *faultRepo) DeleteTransfer(ctx context.Context, ownerID string, id int64) error {
	f.mu.Lock()
	err := f.failDeleteTransfer
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Repository.DeleteTransfer(ctx, ownerID, id)
}

func (f *faultRepo) UpdateIncomeSource(ctx context.Context, src core.IncomeSource) error {
	if f.beforeUpdateSource != nil {
		f.beforeUpdateSource()
	}
	return f.Repository.UpdateIncomeSource(ctx, src)
}

func (f *faultRepo) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if f.failCreateExpense != nil {
		return core.Expense{}, f.failCreateExpense
	}
	return f.Repository.CreateExpense(ctx, e)
}

type fixture struct {
	store    *memory.Store
	repo     *faultRepo
	events   *recordingPublisher
	balances *cache.BalanceCache
	ledger   *Ledger
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	repo := newFaultRepo(store)
	events := &recordingPublisher{}
	balances := cache.NewBalanceCache(64, time.Minute)
	logger := ledgerlog.New(ledgerlog.Config{
		Component: "test",
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
	return &fixture{
		store:    store,
		repo:     repo,
		events:   events,
		balances: balances,
		ledger: NewLedger(repo, Options{
			Balances: balances,
			Events:   events,
			Logger:   logger,
		}),
		ctx: context.Background(),
	}
}

func (f *fixture) source(t *testing.T, label string, initial int64) core.IncomeSource {
	t.Helper()
	src, err := f.ledger.Income.CreateIncomeSource(f.ctx, owner, label, cents(initial))
	if err != nil {
		t.Fatalf("create source %s: %v", label, err)
	}
	return src
}

func (f *fixture) expense(t *testing.T, sourceID, amount int64) core.Expense {
	t.Helper()
	e, err := f.ledger.Expenses.CreateExpense(f.ctx, owner, ExpenseInput{
		SourceID: sourceID, Amount: cents(amount), Date: today(), Label: "expense",
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return e
}

// stored reads the persisted balance, bypassing reconciliation.
func (f *fixture) stored(t *testing.T, id int64) int64 {
	t.Helper()
	src, err := f.store.GetIncomeSource(f.ctx, owner, id)
	if err != nil {
		t.Fatalf("get source %d: %v", id, err)
	}
	return src.AvailableBalance.Cents
}

// reconciled reads the balance through the income service.
func (f *fixture) reconciled(t *testing.T, id int64) int64 {
	t.Helper()
	src, err := f.ledger.Income.GetIncomeSource(f.ctx, owner, id)
	if err != nil {
		t.Fatalf("get source %d: %v", id, err)
	}
	return src.AvailableBalance.Cents
}

func requireValidation(t *testing.T, err error, target error) {
	t.Helper()
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *core.ValidationError, got %T: %v", err, err)
	}
	if target != nil && !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func requireNotFound(t *testing.T, err error) {
	t.Helper()
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *core.NotFoundError, got %T: %v", err, err)
	}
}
