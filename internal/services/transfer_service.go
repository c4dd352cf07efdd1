package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"recettes/internal/amqp"
	"recettes/internal/core"
	ledgerlog "recettes/internal/log"
	"recettes/internal/repository"
)

const (
	opCreateTransfer = "create_transfer"
	opDeleteTransfer = "delete_transfer"
)

type TransferInput struct {
	SourceID      int64
	DestinationID int64
	Amount        core.Money
	Date          core.Date
	Description   string
}

// TransferService moves funds between two income sources as a sequence of
// independent repository calls. A step failing after an earlier one took
// effect triggers one compensating action and a *core.PartialFailureError.
type TransferService struct {
	repo    repository.Repository
	rec     *Reconciler
	events  EventPublisher
	logger  *ledgerlog.StructuredLogger
	newOpID func() string
}

func NewTransferService(repo repository.Repository, rec *Reconciler, events EventPublisher, logger *ledgerlog.StructuredLogger) *TransferService {
	return &TransferService{
		repo:    repo,
		rec:     rec,
		events:  events,
		logger:  logger,
		newOpID: uuid.NewString,
	}
}

func (s *TransferService) ListTransfers(ctx context.Context, ownerID string, filter repository.TransferFilter) ([]core.Transfer, error) {
	return s.repo.ListTransfers(ctx, ownerID, filter)
}

func (s *TransferService) GetTransfer(ctx context.Context, ownerID string, id int64) (core.Transfer, error) {
	t, err := s.repo.GetTransfer(ctx, ownerID, id)
	if err != nil {
		return core.Transfer{}, notFound("transfer", id, err)
	}
	return t, nil
}

// CreateTransfer persists the record, debits the source, then credits the
// destination. The source must hold at least the transferred amount.
func (s *TransferService) CreateTransfer(ctx context.Context, ownerID string, in TransferInput) (core.Transfer, error) {
	t := core.Transfer{
		OwnerID:       ownerID,
		SourceID:      in.SourceID,
		DestinationID: in.DestinationID,
		Amount:        in.Amount,
		Date:          in.Date,
		Description:   in.Description,
	}
	if err := t.Validate(); err != nil {
		return core.Transfer{}, err
	}

	src, _, err := s.rec.ReconcileSource(ctx, ownerID, t.SourceID)
	if err != nil {
		return core.Transfer{}, err
	}
	dst, err := s.repo.GetIncomeSource(ctx, ownerID, t.DestinationID)
	if err != nil {
		return core.Transfer{}, notFound("income source", t.DestinationID, err)
	}
	if src.IsClosed() {
		return core.Transfer{}, core.Invalid("source_id", core.ErrSourceClosed)
	}
	if dst.IsClosed() {
		return core.Transfer{}, core.Invalid("destination_id", core.ErrSourceClosed)
	}
	if src.AvailableBalance.Cents < t.Amount.Cents {
		return core.Transfer{}, core.Invalid("amount", core.ErrInsufficientFunds)
	}

	opID := s.newOpID()

	created, err := s.repo.CreateTransfer(ctx, t)
	if err != nil {
		return core.Transfer{}, fmt.Errorf("save transfer: %w", err)
	}
	defer s.rec.Invalidate(ownerID, t.SourceID, t.DestinationID)

	if err := s.repo.DecrementBalance(ctx, ownerID, t.SourceID, t.Amount); err != nil {
		// no balance moved yet, dropping the record undoes everything
		if derr := s.repo.DeleteTransfer(ctx, ownerID, created.ID); derr != nil {
			return core.Transfer{}, s.report(ctx, ownerID, &core.PartialFailureError{
				OperationID:   opID,
				Operation:     opCreateTransfer,
				TransferID:    created.ID,
				SourceID:      t.SourceID,
				DestinationID: t.DestinationID,
				Amount:        t.Amount,
				FailedLeg:     core.LegSource,
				Err:           err,
				CompensateErr: derr,
			})
		}
		return core.Transfer{}, fmt.Errorf("debit source %d: %w", t.SourceID, err)
	}

	if err := s.repo.IncrementBalance(ctx, ownerID, t.DestinationID, t.Amount); err != nil {
		cerr := s.repo.IncrementBalance(ctx, ownerID, t.SourceID, t.Amount)
		if cerr == nil {
			cerr = s.repo.DeleteTransfer(ctx, ownerID, created.ID)
		}
		return core.Transfer{}, s.report(ctx, ownerID, &core.PartialFailureError{
			OperationID:   opID,
			Operation:     opCreateTransfer,
			TransferID:    created.ID,
			SourceID:      t.SourceID,
			DestinationID: t.DestinationID,
			Amount:        t.Amount,
			FailedLeg:     core.LegDestination,
			Compensated:   cerr == nil,
			Err:           err,
			CompensateErr: cerr,
		})
	}

	slog.InfoContext(ctx, "Transfer created",
		"owner_id", ownerID,
		"transfer_id", created.ID,
		"source_id", t.SourceID,
		"destination_id", t.DestinationID,
		"amount_cents", t.Amount.Cents)

	return created, nil
}

// DeleteTransfer refunds the source, debits the destination, then removes
// the record.
func (s *TransferService) DeleteTransfer(ctx context.Context, ownerID string, id int64) error {
	t, err := s.repo.GetTransfer(ctx, ownerID, id)
	if err != nil {
		return notFound("transfer", id, err)
	}
	defer s.rec.Invalidate(ownerID, t.SourceID, t.DestinationID)

	opID := s.newOpID()
	pf := func(leg core.Leg, err, cerr error) error {
		return s.report(ctx, ownerID, &core.PartialFailureError{
			OperationID:   opID,
			Operation:     opDeleteTransfer,
			TransferID:    t.ID,
			SourceID:      t.SourceID,
			DestinationID: t.DestinationID,
			Amount:        t.Amount,
			FailedLeg:     leg,
			Compensated:   cerr == nil,
			Err:           err,
			CompensateErr: cerr,
		})
	}

	if err := s.repo.IncrementBalance(ctx, ownerID, t.SourceID, t.Amount); err != nil {
		return fmt.Errorf("refund source %d: %w", t.SourceID, err)
	}

	if err := s.repo.DecrementBalance(ctx, ownerID, t.DestinationID, t.Amount); err != nil {
		cerr := s.repo.DecrementBalance(ctx, ownerID, t.SourceID, t.Amount)
		return pf(core.LegDestination, err, cerr)
	}

	if err := s.repo.DeleteTransfer(ctx, ownerID, t.ID); err != nil {
		cerr := errors.Join(
			s.repo.DecrementBalance(ctx, ownerID, t.SourceID, t.Amount),
			s.repo.IncrementBalance(ctx, ownerID, t.DestinationID, t.Amount),
		)
		return pf(core.LegRecord, err, cerr)
	}

	slog.InfoContext(ctx, "Transfer deleted",
		"owner_id", ownerID,
		"transfer_id", t.ID,
		"source_id", t.SourceID,
		"destination_id", t.DestinationID,
		"amount_cents", t.Amount.Cents)

	return nil
}

// report logs and publishes pf, then returns it.
func (s *TransferService) report(ctx context.Context, ownerID string, pf *core.PartialFailureError) error {
	s.logger.LogPartialFailure(ctx, ownerID, pf)
	publish(ctx, s.events, amqp.NewPartialFailureEvent(ownerID, pf))
	return pf
}
