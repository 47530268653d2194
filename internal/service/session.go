package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/ledger"

	"github.com/sirupsen/logrus"
)

// EndSession closes a started session. Bookings in any other status are left alone.
func (s *bookingService) EndSession(ctx context.Context, bookingID int64, actorID int64) (*entity.SessionOutcome, error) {
	out := &entity.SessionOutcome{Outcome: entity.Outcome{Status: entity.OutcomeNoop, BookingID: bookingID}}
	var (
		booking       *entity.Booking
		interpreterID int64
	)

	err := s.withLock(ctx, bookingID, func() error {
		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != entity.BookingStatusStarted {
			return nil
		}
		active, err := s.ledger.Active(ctx, bookingID)
		if err != nil {
			return err
		}

		now := s.now()
		updated := b.Clone()
		updated.SessionTime = formatElapsed(now.Sub(b.Due))
		updated.Status = entity.BookingStatusCompleted
		updated.EndAt = &now
		mutation := &entity.BookingMutation{Booking: updated, Complete: ledger.PlanComplete(active, actorID, now)}
		if err := s.bookingRepo.Apply(ctx, mutation); err != nil {
			return fmt.Errorf("failed to end session: %w", err)
		}

		out.Status = entity.OutcomeApplied
		out.SessionTime = updated.SessionTime
		out.EndedAt = &now
		out.Deltas = []entity.Delta{{Kind: entity.DeltaStatus, Old: string(b.Status), New: string(updated.Status)}}
		s.record(ctx, actorID, fmt.Sprintf("user #%d", actorID), bookingID, out.Deltas)
		if active != nil {
			interpreterID = active.InterpreterID
		}
		booking = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return out, nil
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   bookingID,
		"session_time": out.SessionTime,
	}).Info("Session ended")

	n := s.newNotice(ctx, booking, &out.Outcome)
	s.sessionLetters(ctx, n, booking, interpreterID)
	s.publish(ctx, entity.EventSessionEnded, booking, actorID, interpreterID)
	return out, nil
}

// CustomerNoShow closes the booking because the customer did not turn up. No letters are sent.
func (s *bookingService) CustomerNoShow(ctx context.Context, bookingID int64) (*entity.SessionOutcome, error) {
	out := &entity.SessionOutcome{Outcome: entity.Outcome{Status: entity.OutcomeApplied, BookingID: bookingID}}

	err := s.withLock(ctx, bookingID, func() error {
		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		active, err := s.ledger.Active(ctx, bookingID)
		if err != nil {
			return err
		}

		now := s.now()
		updated := b.Clone()
		if b.Status == entity.BookingStatusStarted {
			updated.SessionTime = formatElapsed(now.Sub(b.Due))
		}
		updated.Status = entity.BookingStatusNotCarriedOutCustomer
		updated.EndAt = &now

		var completedBy int64
		if active != nil {
			completedBy = active.InterpreterID
		}
		mutation := &entity.BookingMutation{Booking: updated, Complete: ledger.PlanComplete(active, completedBy, now)}
		if err := s.bookingRepo.Apply(ctx, mutation); err != nil {
			return fmt.Errorf("failed to close booking: %w", err)
		}

		out.SessionTime = updated.SessionTime
		out.EndedAt = &now
		out.Deltas = []entity.Delta{{Kind: entity.DeltaStatus, Old: string(b.Status), New: string(updated.Status)}}
		s.record(ctx, completedBy, fmt.Sprintf("translator #%d", completedBy), bookingID, out.Deltas)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("booking_id", bookingID).Info("Booking closed, customer did not show up")
	return out, nil
}

// sessionLetters sends the same session summary to both parties, as an invoice to the
// customer and as a payroll note to the interpreter.
func (s *bookingService) sessionLetters(ctx context.Context, n *notice, b *entity.Booking, interpreterID int64) {
	spent := sessionText(b.SessionTime)
	subject := fmt.Sprintf("Information about finished session for booking #%d", b.ID)

	customer := s.partyOrFailure(ctx, n, "customer", func() (*party, error) { return s.customerParty(ctx, b) })
	s.letter(ctx, n, customer, subject, tplSessionEnded, map[string]interface{}{
		"session_time": spent,
		"for_text":     "invoice",
	})

	if interpreterID == 0 {
		return
	}
	interpreter := s.partyOrFailure(ctx, n, "interpreter", func() (*party, error) { return s.interpreterParty(ctx, interpreterID) })
	s.letter(ctx, n, interpreter, subject, tplSessionEnded, map[string]interface{}{
		"session_time": spent,
		"for_text":     "payroll",
	})
}

// formatElapsed renders a duration as hh:mm:ss with the hours not wrapping at a day.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// sessionText turns hh:mm:ss into "H tim M min".
func sessionText(hms string) string {
	parts := strings.Split(hms, ":")
	if len(parts) < 2 {
		return hms
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return hms
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return hms
	}
	return fmt.Sprintf("%d tim %d min", hours, minutes)
}
