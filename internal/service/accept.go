package service

import (
	"context"
	"fmt"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/notification"

	"github.com/sirupsen/logrus"
)

const (
	msgAlreadyTaken  = "This booking is already accepted by another interpreter"
	msgAlreadyBooked = "You already have a booking at this time. The booking was not accepted"
)

// AcceptBooking lets an interpreter claim a pending booking. Only the first caller wins.
func (s *bookingService) AcceptBooking(ctx context.Context, bookingID int64, interpreterID int64) (*entity.AcceptOutcome, error) {
	out := &entity.AcceptOutcome{Outcome: entity.Outcome{Status: entity.OutcomeRejected, BookingID: bookingID}}
	var booking *entity.Booking

	err := s.withLock(ctx, bookingID, func() error {
		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != entity.BookingStatusPending {
			out.Reason = entity.ConflictAlreadyTaken
			out.Message = msgAlreadyTaken
			return nil
		}
		// Админ мог назначить переводчика без смены статуса
		active, err := s.ledger.Active(ctx, bookingID)
		if err != nil {
			return err
		}
		if active != nil {
			out.Reason = entity.ConflictAlreadyTaken
			out.Message = msgAlreadyTaken
			return nil
		}

		overlap, err := s.ledger.HasOverlap(ctx, interpreterID, b)
		if err != nil {
			return err
		}
		if overlap {
			out.Reason = entity.ConflictAlreadyBooked
			out.Message = msgAlreadyBooked
			return nil
		}

		won, err := s.bookingRepo.AssignIfPending(ctx, bookingID, interpreterID, s.now())
		if err != nil {
			return fmt.Errorf("failed to assign booking: %w", err)
		}
		if !won {
			out.Reason = entity.ConflictAlreadyTaken
			out.Message = msgAlreadyTaken
			return nil
		}

		b.Status = entity.BookingStatusAssigned
		out.Status = entity.OutcomeApplied
		out.Deltas = []entity.Delta{
			{Kind: entity.DeltaTranslator, New: idString(interpreterID)},
			{Kind: entity.DeltaStatus, Old: string(entity.BookingStatusPending), New: string(entity.BookingStatusAssigned)},
		}
		s.record(ctx, interpreterID, fmt.Sprintf("translator #%d", interpreterID), bookingID, out.Deltas)
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := s.logger.WithFields(logrus.Fields{
		"booking_id":     bookingID,
		"interpreter_id": interpreterID,
	})
	if !out.Applied() {
		entry.WithField("reason", out.Reason).Info("Booking not accepted")
		return out, nil
	}
	entry.Info("Booking accepted")

	n := s.newNotice(ctx, booking, &out.Outcome)
	customer := s.partyOrFailure(ctx, n, "customer", func() (*party, error) { return s.customerParty(ctx, booking) })
	interpreter := s.partyOrFailure(ctx, n, "interpreter", func() (*party, error) { return s.interpreterParty(ctx, interpreterID) })

	s.letter(ctx, n, customer, fmt.Sprintf("An interpreter has accepted booking #%d", bookingID), tplJobAccepted, nil)
	s.letter(ctx, n, interpreter, fmt.Sprintf("Confirmation of booking #%d", bookingID), tplJobAssignedInterpreter, nil)
	s.pushParty(ctx, n, notification.KindJobAccepted, customer,
		fmt.Sprintf("Your booking #%d for %s has been accepted", bookingID, n.language), notification.Standard)
	s.remind(ctx, n, customer, interpreter)

	s.publish(ctx, entity.EventBookingAccepted, booking, interpreterID, booking.CustomerID)
	return out, nil
}
