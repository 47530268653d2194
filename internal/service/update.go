package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/ledger"

	"github.com/sirupsen/logrus"
)

const dueLayout = entity.DueTimeLayout

// UpdateBookingRequest is the field set an admin proposes for a booking.
// Nil pointers leave the field untouched.
type UpdateBookingRequest struct {
	Status          string          `json:"status"`
	Due             *entity.DueTime `json:"due"`
	FromLanguageID  *int64          `json:"from_language_id"`
	TranslatorID    *int64          `json:"translator"`
	TranslatorEmail string          `json:"translator_email"`
	AdminComments   *string         `json:"admin_comments"`
	Reference       *string         `json:"reference"`
	SessionTime     string          `json:"session_time"`
}

func (r *UpdateBookingRequest) comment() string {
	if r.AdminComments == nil {
		return ""
	}
	return *r.AdminComments
}

// changes remembers what the committed update touched, for the notifications that follow.
type changes struct {
	oldDue         time.Time
	oldLanguageID  int64
	oldInterpreter int64
	newInterpreter int64
	due            bool
	language       bool
	translator     bool
	transition     *transition
	verdict        verdict
}

func (s *bookingService) UpdateBooking(ctx context.Context, bookingID int64, actor *entity.User, req *UpdateBookingRequest) (*entity.UpdateOutcome, error) {
	if actor == nil {
		return nil, entity.ErrForbidden
	}

	out := &entity.UpdateOutcome{Outcome: entity.Outcome{Status: entity.OutcomeNoop, BookingID: bookingID}}
	var (
		updated *entity.Booking
		ch      changes
	)

	err := s.withLock(ctx, bookingID, func() error {
		current, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		active, err := s.ledger.Active(ctx, bookingID)
		if err != nil {
			return err
		}

		now := s.now()
		b := current.Clone()
		mutation := &entity.BookingMutation{Booking: b}

		// Назначение переводчика
		proposed, err := s.resolveTranslator(ctx, req)
		if err != nil {
			return err
		}
		plan := ledger.PlanReassign(active, bookingID, proposed, now)
		holder := active
		if plan.Changed {
			mutation.Cancel = plan.Cancel
			mutation.Create = plan.Create
			holder = plan.Create
			ch.translator = true
			if active != nil {
				ch.oldInterpreter = active.InterpreterID
			}
			ch.newInterpreter = plan.Create.InterpreterID
			out.TranslatorChanged = true
			out.Deltas = append(out.Deltas, entity.Delta{
				Kind: entity.DeltaTranslator,
				Old:  idString(ch.oldInterpreter),
				New:  idString(ch.newInterpreter),
			})
		}
		var holderID int64
		if holder != nil {
			holderID = holder.InterpreterID
		}

		// Время начала
		if req.Due != nil {
			if due := req.Due.In(s.opts.Location); !due.Equal(b.Due) {
				ch.due = true
				ch.oldDue = b.Due
				out.Deltas = append(out.Deltas, entity.Delta{
					Kind: entity.DeltaDue,
					Old:  b.Due.In(s.opts.Location).Format(dueLayout),
					New:  due.Format(dueLayout),
				})
				b.Due = due
			}
		}

		// Язык
		if req.FromLanguageID != nil && *req.FromLanguageID != b.FromLanguageID {
			ch.language = true
			ch.oldLanguageID = b.FromLanguageID
			out.Deltas = append(out.Deltas, entity.Delta{
				Kind: entity.DeltaLanguage,
				Old:  s.languageName(ctx, b.FromLanguageID),
				New:  s.languageName(ctx, *req.FromLanguageID),
			})
			b.FromLanguageID = *req.FromLanguageID
		}

		if req.AdminComments != nil && *req.AdminComments != b.AdminComments {
			out.Deltas = append(out.Deltas, entity.Delta{Kind: entity.DeltaComment, Old: b.AdminComments, New: *req.AdminComments})
			b.AdminComments = *req.AdminComments
		}
		if req.Reference != nil && *req.Reference != b.Reference {
			out.Deltas = append(out.Deltas, entity.Delta{Kind: entity.DeltaReference, Old: b.Reference, New: *req.Reference})
			b.Reference = *req.Reference
		}

		// Статус
		to := entity.BookingStatus(req.Status)
		if to != "" && to != b.Status {
			t := &transition{
				booking:           b,
				from:              b.Status,
				to:                to,
				comment:           req.comment(),
				sessionTime:       req.SessionTime,
				translatorChanged: ch.translator,
				interpreterID:     holderID,
				actorID:           actor.ID,
				now:               now,
				expiry:            willExpireAt,
			}
			v := decide(t)
			out.Transition = &entity.StatusTransition{From: t.from, To: to, Accepted: v.accepted, Reason: v.reason}

			entry := s.logger.WithFields(logrus.Fields{
				"booking_id": bookingID,
				"from":       t.from,
				"to":         to,
				"actor_id":   actor.ID,
			})
			if v.accepted {
				b.Status = to
				settleInto(mutation, v.settle, holder, actor.ID, now)
				out.Deltas = append(out.Deltas, entity.Delta{Kind: entity.DeltaStatus, Old: string(t.from), New: string(to)})
				ch.transition = t
				ch.verdict = v
				entry.Info("Booking status changed")
			} else {
				entry.WithField("reason", v.reason).Info("Booking status not changed")
			}
		}

		if len(out.Deltas) == 0 {
			return nil
		}
		if err := s.bookingRepo.Apply(ctx, mutation); err != nil {
			return fmt.Errorf("failed to apply booking update: %w", err)
		}
		s.record(ctx, actor.ID, actor.Label(), bookingID, out.Deltas)
		out.Status = entity.OutcomeApplied
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		if out.Transition != nil && !out.Transition.Accepted {
			out.Status = entity.OutcomeRejected
			out.Message = out.Transition.Reason
		}
		return out, nil
	}

	n := s.newNotice(ctx, updated, &out.Outcome)
	if updated.Due.After(s.now()) {
		s.notifyChanges(ctx, n, &ch)
	}
	if ch.transition != nil && ch.verdict.effect != nil {
		ch.verdict.effect(ctx, s, ch.transition, n)
	}
	return out, nil
}

// resolveTranslator turns the translator proposal into an interpreter id, 0 meaning no proposal.
// The email wins over the id when both are given.
func (s *bookingService) resolveTranslator(ctx context.Context, req *UpdateBookingRequest) (int64, error) {
	if req.TranslatorEmail != "" {
		user, err := s.userRepo.GetByEmail(ctx, req.TranslatorEmail)
		if errors.Is(err, entity.ErrUserNotFound) || (err == nil && user.Role != entity.RoleTranslator) {
			return 0, entity.NewValidationError("translator_email", "No translator with this email")
		}
		if err != nil {
			return 0, err
		}
		return user.ID, nil
	}
	if req.TranslatorID == nil || *req.TranslatorID == 0 {
		return 0, nil
	}
	if _, err := s.userRepo.GetInterpreter(ctx, *req.TranslatorID); err != nil {
		if errors.Is(err, entity.ErrInterpreterNotFound) {
			return 0, entity.NewValidationError("translator", "Unknown translator")
		}
		return 0, err
	}
	return *req.TranslatorID, nil
}

// notifyChanges sends one letter set per changed field.
func (s *bookingService) notifyChanges(ctx context.Context, n *notice, ch *changes) {
	if !ch.due && !ch.language && !ch.translator {
		return
	}
	b := n.booking
	customer := s.partyOrFailure(ctx, n, "customer", func() (*party, error) { return s.customerParty(ctx, b) })

	holder := ch.newInterpreter
	if !ch.translator {
		if a, err := s.ledger.Active(ctx, b.ID); err == nil && a != nil {
			holder = a.InterpreterID
		}
	}
	var interpreter *party
	if holder != 0 {
		interpreter = s.partyOrFailure(ctx, n, "interpreter", func() (*party, error) { return s.interpreterParty(ctx, holder) })
	}

	if ch.translator {
		s.letter(ctx, n, customer, fmt.Sprintf("Interpreter changed for booking #%d", b.ID), tplChangedTranslatorCust, nil)
		if ch.oldInterpreter != 0 {
			previous := s.partyOrFailure(ctx, n, "interpreter", func() (*party, error) { return s.interpreterParty(ctx, ch.oldInterpreter) })
			s.letter(ctx, n, previous, fmt.Sprintf("You are no longer assigned booking #%d", b.ID), tplChangedTranslatorOld, nil)
		}
		s.letter(ctx, n, interpreter, fmt.Sprintf("You have been assigned booking #%d", b.ID), tplChangedTranslatorNew, nil)
	}
	if ch.due {
		extra := map[string]interface{}{"old_time": ch.oldDue.In(s.opts.Location).Format(dueLayout)}
		subject := fmt.Sprintf("Date changed for booking #%d", b.ID)
		s.letter(ctx, n, customer, subject, tplChangedDate, extra)
		s.letter(ctx, n, interpreter, subject, tplChangedDate, extra)
	}
	if ch.language {
		extra := map[string]interface{}{"old_language": s.languageName(ctx, ch.oldLanguageID)}
		subject := fmt.Sprintf("Language changed for booking #%d", b.ID)
		s.letter(ctx, n, customer, subject, tplChangedLanguage, extra)
		s.letter(ctx, n, interpreter, subject, tplChangedLanguage, extra)
	}
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
