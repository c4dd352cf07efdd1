package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"recettes/internal/amqp"
	"recettes/internal/cache"
	"recettes/internal/core"
	ledgerlog "recettes/internal/log"
	"recettes/internal/repository"
)

const driftWriteTimeout = 5 * time.Second

type ReconcilerConfig struct {
	Balances *cache.BalanceCache
	Events   EventPublisher
	Logger   *ledgerlog.StructuredLogger
	// QueueSize bounds the pending drift corrections once Start is called.
	QueueSize int
}

// Reconciler recomputes available balances from the operations applied
// against each source and writes corrected values back.
//
// Before Start, corrections are written inline. After Start they are queued
// and written by a background goroutine; Stop drains the queue.
type Reconciler struct {
	repo     repository.Repository
	balances *cache.BalanceCache
	events   EventPublisher
	logger   *ledgerlog.StructuredLogger

	mu        sync.Mutex
	running   bool
	queueSize int
	queue     chan core.DriftCorrected
	doneCh    chan struct{}
}

func NewReconciler(repo repository.Repository, cfg ReconcilerConfig) *Reconciler {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = ledgerlog.NewStructuredLogger(ledgerlog.New(ledgerlog.Config{
			Handler:   slog.Default().Handler(),
			Component: ledgerlog.ComponentReconciler,
		}))
	}
	return &Reconciler{
		repo:      repo,
		balances:  cfg.Balances,
		events:    cfg.Events,
		logger:    cfg.Logger,
		queueSize: cfg.QueueSize,
	}
}

// Start launches the drift writer. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.queue = make(chan core.DriftCorrected, r.queueSize)
	r.doneCh = make(chan struct{})

	go r.writeLoop(context.WithoutCancel(ctx), r.queue, r.doneCh)

	slog.InfoContext(ctx, "Reconciler started", "queue_size", r.queueSize)
	return nil
}

// Stop closes the queue and waits until pending corrections are written or
// ctx is done.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.queue)
	done := r.doneCh
	r.mu.Unlock()

	select {
	case <-done:
		slog.InfoContext(ctx, "Reconciler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}
}

func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) writeLoop(ctx context.Context, queue <-chan core.DriftCorrected, done chan<- struct{}) {
	defer close(done)
	for d := range queue {
		r.persist(ctx, d)
	}
}

func (r *Reconciler) persist(ctx context.Context, d core.DriftCorrected) {
	ctx, cancel := context.WithTimeout(ctx, driftWriteTimeout)
	defer cancel()

	if err := r.repo.SetAvailableBalance(ctx, d.OwnerID, d.SourceID, d.Authoritative); err != nil {
		slog.WarnContext(ctx, "Failed to persist corrected balance",
			"owner_id", d.OwnerID,
			"source_id", d.SourceID,
			"authoritative_cents", d.Authoritative.Cents,
			"error", err)
		return
	}
	// the next read recomputes from the persisted value
	r.Invalidate(d.OwnerID, d.SourceID)
}

// handleDrift makes a correction observable and schedules its write.
func (r *Reconciler) handleDrift(ctx context.Context, d core.DriftCorrected) {
	r.logger.LogDriftCorrected(ctx, d)
	publish(ctx, r.events, amqp.NewDriftCorrectedEvent(d))

	r.mu.Lock()
	if r.running {
		select {
		case r.queue <- d:
			r.mu.Unlock()
			return
		default:
			slog.WarnContext(ctx, "Drift queue full, writing correction inline", "source_id", d.SourceID)
		}
	}
	r.mu.Unlock()

	r.persist(context.WithoutCancel(ctx), d)
}

// Invalidate drops cached balances of the given sources.
func (r *Reconciler) Invalidate(ownerID string, sourceIDs ...int64) {
	if r.balances != nil {
		r.balances.Invalidate(ownerID, sourceIDs...)
	}
}

// ReconcileSource loads a source with its expenses and transfers and returns
// it carrying the authoritative balance.
func (r *Reconciler) ReconcileSource(ctx context.Context, ownerID string, sourceID int64) (core.IncomeSource, core.Reconciliation, error) {
	src, err := r.repo.GetIncomeSource(ctx, ownerID, sourceID)
	if err != nil {
		return core.IncomeSource{}, core.Reconciliation{}, notFound("income source", sourceID, err)
	}

	var (
		expenses  []core.Expense
		transfers []core.Transfer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = r.repo.ListExpenses(gctx, ownerID, repository.ExpenseFilter{SourceID: sourceID})
		return err
	})
	g.Go(func() error {
		var err error
		transfers, err = r.repo.ListTransfers(gctx, ownerID, repository.TransferFilter{SourceID: sourceID})
		return err
	})
	if err := g.Wait(); err != nil {
		return core.IncomeSource{}, core.Reconciliation{}, fmt.Errorf("load operations of source %d: %w", sourceID, err)
	}

	return r.apply(ctx, src, expenses, transfers)
}

func (r *Reconciler) apply(ctx context.Context, src core.IncomeSource, expenses []core.Expense, transfers []core.Transfer) (core.IncomeSource, core.Reconciliation, error) {
	rec := core.Reconcile(src, expenses, transfers)
	if rec.WasDrifted {
		r.handleDrift(ctx, *rec.Drift)
	}
	src.AvailableBalance = rec.Balance
	if r.balances != nil {
		r.balances.Put(src.OwnerID, src.ID, rec.Balance)
	}
	return src, rec, nil
}

// ReconcileAll reconciles every source of ownerID and returns them with
// their authoritative balances, plus the corrections that were applied.
func (r *Reconciler) ReconcileAll(ctx context.Context, ownerID string) ([]core.IncomeSource, []core.DriftCorrected, error) {
	var (
		sources   []core.IncomeSource
		expenses  []core.Expense
		transfers []core.Transfer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sources, err = r.repo.ListIncomeSources(gctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = r.repo.ListExpenses(gctx, ownerID, repository.ExpenseFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		transfers, err = r.repo.ListTransfers(gctx, ownerID, repository.TransferFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("load ledger of %s: %w", ownerID, err)
	}

	out := make([]core.IncomeSource, 0, len(sources))
	var drifts []core.DriftCorrected
	for _, src := range sources {
		reconciled, rec, err := r.apply(ctx, src, expenses, transfers)
		if err != nil {
			return nil, nil, err
		}
		if rec.WasDrifted {
			drifts = append(drifts, *rec.Drift)
		}
		out = append(out, reconciled)
	}
	return out, drifts, nil
}

// Balance returns the available balance of a source, from the cache when a
// recent reconciliation is known.
func (r *Reconciler) Balance(ctx context.Context, ownerID string, sourceID int64) (core.Money, error) {
	if r.balances != nil {
		if b, ok := r.balances.Get(ownerID, sourceID); ok {
			return b, nil
		}
	}
	src, _, err := r.ReconcileSource(ctx, ownerID, sourceID)
	if err != nil {
		return core.Money{}, err
	}
	return src.AvailableBalance, nil
}
