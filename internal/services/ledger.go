package services

import (
	"context"
	"errors"
	"log/slog"

	"recettes/internal/amqp"
	"recettes/internal/cache"
	"recettes/internal/core"
	ledgerlog "recettes/internal/log"
	"recettes/internal/repository"
)

// EventPublisher delivers ledger events. *amqp.Client implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// Options configures NewLedger. Every field is optional.
type Options struct {
	Balances       *cache.BalanceCache
	Events         EventPublisher
	Logger         *ledgerlog.Logger
	DriftQueueSize int
}

// Ledger bundles the services built over one repository.
type Ledger struct {
	Reconciler *Reconciler
	Income     *IncomeService
	Expenses   *ExpenseService
	Transfers  *TransferService
	Envelope   *EnvelopeService
}

func NewLedger(repo repository.Repository, opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = ledgerlog.New(ledgerlog.Config{Handler: slog.Default().Handler(), Component: ledgerlog.ComponentLedger})
	}
	structured := ledgerlog.NewStructuredLogger(logger)

	rec := NewReconciler(repo, ReconcilerConfig{
		Balances:  opts.Balances,
		Events:    opts.Events,
		Logger:    structured,
		QueueSize: opts.DriftQueueSize,
	})

	return &Ledger{
		Reconciler: rec,
		Income:     NewIncomeService(repo, rec),
		Expenses:   NewExpenseService(repo, rec, opts.Events),
		Transfers:  NewTransferService(repo, rec, opts.Events, structured),
		Envelope:   NewEnvelopeService(repo),
	}
}

// notFound turns repository.ErrNotFound into a *core.NotFoundError and
// passes every other error through.
func notFound(entity string, id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// publish sends ev when a publisher is configured. Failures are logged only.
func publish(ctx context.Context, events EventPublisher, ev *amqp.LedgerEvent) {
	if events == nil {
		slog.DebugContext(ctx, "No event publisher, skipping ledger event", "type", ev.Type)
		return
	}
	if err := events.PublishEvent(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger event",
			"event_id", ev.ID,
			"type", ev.Type,
			"owner_id", ev.OwnerID,
			"error", err)
	}
}
