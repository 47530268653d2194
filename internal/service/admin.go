package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/ledger"
	"github.com/ds124wfegd/interpreter-booking/internal/notification"

	"github.com/sirupsen/logrus"
)

const systemActor = "system"

// ReopenBooking puts a booking back on offer. Terminal bookings are copied into a fresh
// pending booking that references the original.
func (s *bookingService) ReopenBooking(ctx context.Context, bookingID int64, actor *entity.User) (*entity.Outcome, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, entity.ErrForbidden
	}

	out := &entity.Outcome{Status: entity.OutcomeApplied, BookingID: bookingID}
	var reopened *entity.Booking

	err := s.withLock(ctx, bookingID, func() error {
		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		now := s.now()
		expires := willExpireAt(now, b.Due)

		if b.Status.Terminal() {
			fresh := &entity.Booking{
				CustomerID:     b.CustomerID,
				FromLanguageID: b.FromLanguageID,
				Immediate:      b.Immediate,
				PhoneType:      b.PhoneType,
				PhysicalType:   b.PhysicalType,
				JobType:        b.JobType,
				Certified:      b.Certified,
				Gender:         b.Gender,
				Due:            b.Due,
				Duration:       b.Duration,
				Status:         entity.BookingStatusPending,
				CreatedAt:      now,
				WillExpireAt:   &expires,
				AdminComments:  fmt.Sprintf("This booking is a reopening of booking #%d", b.ID),
				Reference:      b.Reference,
				UserEmail:      b.UserEmail,
				Address:        b.Address,
				Instructions:   b.Instructions,
				Town:           b.Town,
				UpdatedAt:      now,
			}
			if err := s.bookingRepo.Create(ctx, fresh); err != nil {
				return fmt.Errorf("failed to create reopened booking: %w", err)
			}
			out.BookingID = fresh.ID
			out.Message = fmt.Sprintf("Booking #%d reopened as booking #%d", b.ID, fresh.ID)
			out.Deltas = []entity.Delta{{Kind: entity.DeltaComment, New: fresh.AdminComments}}
			s.record(ctx, actor.ID, actor.Label(), fresh.ID, out.Deltas)
			reopened = fresh
			return nil
		}

		active, err := s.ledger.Active(ctx, bookingID)
		if err != nil {
			return err
		}
		updated := b.Clone()
		updated.Status = entity.BookingStatusPending
		updated.CreatedAt = now
		updated.WillExpireAt = &expires
		updated.EmailSent = 0
		updated.EmailSentToVirpal = 0
		mutation := &entity.BookingMutation{Booking: updated, Cancel: ledger.PlanRelease(active, now)}
		if err := s.bookingRepo.Apply(ctx, mutation); err != nil {
			return fmt.Errorf("failed to reopen booking: %w", err)
		}
		out.Deltas = []entity.Delta{{Kind: entity.DeltaStatus, Old: string(b.Status), New: string(updated.Status)}}
		if active != nil {
			out.Deltas = append([]entity.Delta{{Kind: entity.DeltaTranslator, Old: idString(active.InterpreterID)}}, out.Deltas...)
		}
		s.record(ctx, actor.ID, actor.Label(), bookingID, out.Deltas)
		reopened = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  bookingID,
		"reopened_as": reopened.ID,
	}).Info("Booking reopened")

	n := s.newNotice(ctx, reopened, out)
	s.broadcast(ctx, n, 0)
	s.publish(ctx, entity.EventBookingReopened, reopened, actor.ID, 0)
	return out, nil
}

// DistanceFeedRequest is the admin form for travel details and handling flags.
type DistanceFeedRequest struct {
	Distance        string `json:"distance"`
	Time            string `json:"time"`
	SessionTime     string `json:"session_time"`
	AdminComment    string `json:"admincomment"`
	Flagged         bool   `json:"flagged"`
	ManuallyHandled bool   `json:"manually_handled"`
	ByAdmin         bool   `json:"by_admin"`
}

func (s *bookingService) UpdateDistanceFeed(ctx context.Context, bookingID int64, actor *entity.User, req *DistanceFeedRequest) (*entity.Outcome, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, entity.ErrForbidden
	}
	if req.Flagged && strings.TrimSpace(req.AdminComment) == "" {
		return nil, entity.NewValidationError("admincomment", "Please, add comment")
	}

	out := &entity.Outcome{Status: entity.OutcomeApplied, BookingID: bookingID}
	err := s.withLock(ctx, bookingID, func() error {
		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}

		if req.Distance != "" || req.Time != "" {
			if err := s.bookingRepo.SaveDistance(ctx, &entity.Distance{BookingID: bookingID, Distance: req.Distance, Time: req.Time}); err != nil {
				return err
			}
		}

		if req.AdminComment != b.AdminComments {
			out.Deltas = append(out.Deltas, entity.Delta{Kind: entity.DeltaComment, Old: b.AdminComments, New: req.AdminComment})
		}
		b.AdminComments = req.AdminComment
		if req.SessionTime != "" {
			b.SessionTime = req.SessionTime
		}
		b.Flagged = req.Flagged
		b.ManuallyHandled = req.ManuallyHandled
		b.ByAdmin = req.ByAdmin
		b.UpdatedAt = s.now()

		if _, err := s.bookingRepo.Update(ctx, b); err != nil {
			return err
		}
		s.record(ctx, actor.ID, actor.Label(), bookingID, out.Deltas)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *bookingService) IgnoreExpiring(ctx context.Context, bookingID int64) (*entity.Outcome, error) {
	return s.setFlag(ctx, bookingID, func(b *entity.Booking) { b.IgnoreExpiring = true })
}

func (s *bookingService) IgnoreExpired(ctx context.Context, bookingID int64) (*entity.Outcome, error) {
	return s.setFlag(ctx, bookingID, func(b *entity.Booking) { b.IgnoreExpired = true })
}

func (s *bookingService) setFlag(ctx context.Context, bookingID int64, set func(b *entity.Booking)) (*entity.Outcome, error) {
	err := s.withLock(ctx, bookingID, func() error {
		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		set(b)
		b.UpdatedAt = s.now()
		_, err = s.bookingRepo.Update(ctx, b)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &entity.Outcome{Status: entity.OutcomeApplied, BookingID: bookingID}, nil
}

// ResendPush offers the booking to every eligible interpreter again.
func (s *bookingService) ResendPush(ctx context.Context, bookingID int64) (*entity.Outcome, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	out := &entity.Outcome{Status: entity.OutcomeApplied, BookingID: bookingID}
	s.broadcast(ctx, s.newNotice(ctx, b, out), 0)
	return out, nil
}

// ResendSMS texts every eligible interpreter that has a phone number.
func (s *bookingService) ResendSMS(ctx context.Context, bookingID int64) (*entity.Outcome, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	interpreters, err := s.matcher.EligibleInterpreters(ctx, b)
	if err != nil {
		return nil, err
	}

	out := &entity.Outcome{Status: entity.OutcomeApplied, BookingID: bookingID}
	body := smsText(b, s.languageName(ctx, b.FromLanguageID), s.opts.Location)
	sent := 0
	for _, p := range interpreters {
		if strings.TrimSpace(p.Phone) == "" {
			continue
		}
		err := s.dispatcher.SendText(ctx, &notification.TextMessage{To: p.Phone, Body: body})
		if err != nil {
			out.AddFailure(channelSMS, string(notification.KindSuitableJob), p.Phone, err)
			continue
		}
		sent++
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"sent":       sent,
		"failed":     len(out.Failures),
	}).Info("SMS resent to interpreters")
	return out, nil
}

func smsText(b *entity.Booking, language string, loc *time.Location) string {
	due := b.Due.In(loc)
	if b.PhysicalType && !b.PhoneType {
		return fmt.Sprintf("New booking: %s interpretation on %s at %s, %d min, on site in %s. Booking #%d",
			language, due.Format("2006-01-02"), due.Format("15:04"), b.Duration, b.Town, b.ID)
	}
	return fmt.Sprintf("New booking: %s interpretation on %s at %s, %d min, by phone. Booking #%d",
		language, due.Format("2006-01-02"), due.Format("15:04"), b.Duration, b.ID)
}

func (s *bookingService) GetExpiredBookings(ctx context.Context, before time.Time) ([]*entity.ExpiredBooking, error) {
	return s.bookingRepo.GetExpired(ctx, before)
}

// ExpireBooking times out a pending booking whose acceptance window has closed.
func (s *bookingService) ExpireBooking(ctx context.Context, bookingID int64) (*entity.Outcome, error) {
	out := &entity.Outcome{Status: entity.OutcomeNoop, BookingID: bookingID}

	err := s.withLock(ctx, bookingID, func() error {
		expired, err := s.bookingRepo.ExpireIfPending(ctx, bookingID, s.now())
		if err != nil {
			return fmt.Errorf("failed to expire booking: %w", err)
		}
		if !expired {
			return nil
		}
		out.Status = entity.OutcomeApplied
		out.Deltas = []entity.Delta{{
			Kind: entity.DeltaStatus,
			Old:  string(entity.BookingStatusPending),
			New:  string(entity.BookingStatusTimedOut),
		}}
		s.record(ctx, 0, systemActor, bookingID, out.Deltas)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Applied() {
		return out, nil
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		s.logger.WithField("booking_id", bookingID).Errorf("Failed to reload expired booking: %v", err)
		out.AddFailure(channelPush, string(notification.KindJobExpired), "", err)
		return out, nil
	}

	n := s.newNotice(ctx, booking, out)
	customer := s.partyOrFailure(ctx, n, "customer", func() (*party, error) { return s.customerParty(ctx, booking) })
	s.pushParty(ctx, n, notification.KindJobExpired, customer,
		fmt.Sprintf("No interpreter accepted booking #%d in time", bookingID), notification.Standard)
	return out, nil
}
