package service

import (
	"context"
	"fmt"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/ledger"
	"github.com/ds124wfegd/interpreter-booking/internal/notification"

	"github.com/sirupsen/logrus"
)

const msgCancelByPhone = "Cancellation within 24 hours of the booking must be made by phone. Please call support to cancel"

// CancelBooking withdraws a booking on behalf of its customer, or hands it back when an
// interpreter cancels their assignment.
func (s *bookingService) CancelBooking(ctx context.Context, bookingID int64, actor *entity.User) (*entity.CancelOutcome, error) {
	if actor == nil {
		return nil, entity.ErrForbidden
	}
	if actor.Role == entity.RoleTranslator {
		return s.interpreterCancel(ctx, bookingID, actor)
	}
	return s.customerCancel(ctx, bookingID, actor)
}

func cancellable(status entity.BookingStatus) bool {
	switch status {
	case entity.BookingStatusPending, entity.BookingStatusAssigned, entity.BookingStatusTimedOut:
		return true
	}
	return false
}

func (s *bookingService) customerCancel(ctx context.Context, bookingID int64, actor *entity.User) (*entity.CancelOutcome, error) {
	out := &entity.CancelOutcome{Outcome: entity.Outcome{Status: entity.OutcomeApplied, BookingID: bookingID}}
	var (
		booking       *entity.Booking
		interpreterID int64
		urgent        bool
	)

	err := s.withLock(ctx, bookingID, func() error {
		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if actor.Role == entity.RoleCustomer && b.CustomerID != actor.ID {
			return entity.ErrForbidden
		}
		if !cancellable(b.Status) {
			return entity.NewConflictError(entity.ConflictNotCancellable,
				fmt.Sprintf("Booking in status %s can't be cancelled", b.Status))
		}
		active, err := s.ledger.Active(ctx, bookingID)
		if err != nil {
			return err
		}

		now := s.now()
		next := entity.BookingStatusWithdrawnAfter24
		if b.Due.Sub(now) >= s.opts.CancelWindow {
			next = entity.BookingStatusWithdrawnBefore24
		}
		urgent = next == entity.BookingStatusWithdrawnAfter24

		updated := b.Clone()
		updated.Status = next
		updated.WithdrawAt = &now
		mutation := &entity.BookingMutation{Booking: updated, Cancel: ledger.PlanRelease(active, now)}
		if err := s.bookingRepo.Apply(ctx, mutation); err != nil {
			return fmt.Errorf("failed to cancel booking: %w", err)
		}

		out.NewStatus = next
		out.Deltas = []entity.Delta{{Kind: entity.DeltaStatus, Old: string(b.Status), New: string(next)}}
		s.record(ctx, actor.ID, actor.Label(), bookingID, out.Deltas)
		if active != nil {
			interpreterID = active.InterpreterID
		}
		booking = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"status":     out.NewStatus,
		"actor_id":   actor.ID,
	}).Info("Booking cancelled by customer")

	n := s.newNotice(ctx, booking, &out.Outcome)
	if interpreterID != 0 {
		class := notification.Standard
		text := fmt.Sprintf("Booking #%d for %s on %s has been cancelled by the customer",
			bookingID, n.language, booking.Due.In(s.opts.Location).Format(dueLayout))
		if urgent {
			class = notification.Urgent()
			text = fmt.Sprintf("Urgent: booking #%d for %s within 24 hours has been cancelled", bookingID, n.language)
		}
		interpreter := s.partyOrFailure(ctx, n, "interpreter", func() (*party, error) { return s.interpreterParty(ctx, interpreterID) })
		s.pushParty(ctx, n, notification.KindJobCancelled, interpreter, text, class)
	}

	s.publish(ctx, entity.EventBookingCancelled, booking, actor.ID, interpreterID)
	return out, nil
}

func (s *bookingService) interpreterCancel(ctx context.Context, bookingID int64, actor *entity.User) (*entity.CancelOutcome, error) {
	out := &entity.CancelOutcome{Outcome: entity.Outcome{Status: entity.OutcomeApplied, BookingID: bookingID}}
	var booking *entity.Booking

	err := s.withLock(ctx, bookingID, func() error {
		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		active, err := s.ledger.Active(ctx, bookingID)
		if err != nil {
			return err
		}
		if active == nil || active.InterpreterID != actor.ID {
			return entity.NewConflictError(entity.ConflictNotAssigned, "You are not assigned to this booking")
		}

		now := s.now()
		if b.Due.Sub(now) <= s.opts.CancelWindow {
			return entity.NewConflictError(entity.ConflictCancelTooLate, msgCancelByPhone)
		}

		updated := b.Clone()
		updated.Status = entity.BookingStatusPending
		updated.CreatedAt = now
		expires := willExpireAt(now, updated.Due)
		updated.WillExpireAt = &expires
		updated.EmailSent = 0
		updated.EmailSentToVirpal = 0
		mutation := &entity.BookingMutation{Booking: updated, Cancel: ledger.PlanRelease(active, now)}
		if err := s.bookingRepo.Apply(ctx, mutation); err != nil {
			return fmt.Errorf("failed to release booking: %w", err)
		}

		out.NewStatus = entity.BookingStatusPending
		out.Deltas = []entity.Delta{
			{Kind: entity.DeltaTranslator, Old: idString(actor.ID)},
			{Kind: entity.DeltaStatus, Old: string(b.Status), New: string(entity.BookingStatusPending)},
		}
		s.record(ctx, actor.ID, actor.Label(), bookingID, out.Deltas)
		booking = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     bookingID,
		"interpreter_id": actor.ID,
	}).Info("Booking cancelled by interpreter")

	n := s.newNotice(ctx, booking, &out.Outcome)
	customer := s.partyOrFailure(ctx, n, "customer", func() (*party, error) { return s.customerParty(ctx, booking) })
	s.pushParty(ctx, n, notification.KindJobCancelled, customer,
		fmt.Sprintf("The interpreter has cancelled booking #%d. We are looking for a new interpreter", bookingID),
		notification.Standard)
	s.broadcast(ctx, n, actor.ID)

	s.publish(ctx, entity.EventBookingCancelled, booking, actor.ID, booking.CustomerID)
	return out, nil
}
