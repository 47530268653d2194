package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/ledger"
)

// transition is a proposed status change, seen after the earlier deltas of the
// same update have been applied to booking.
type transition struct {
	booking           *entity.Booking
	from              entity.BookingStatus
	to                entity.BookingStatus
	comment           string
	sessionTime       string
	translatorChanged bool
	interpreterID     int64
	actorID           int64
	now               time.Time
	expiry            func(created, due time.Time) time.Time
}

// settlement is what an accepted transition does to the active assignment.
type settlement int

const (
	settleNone settlement = iota
	settleRelease
	settleComplete
)

type effect func(ctx context.Context, s *bookingService, t *transition, n *notice)

// verdict is the answer of one table row.
type verdict struct {
	accepted bool
	reason   string
	settle   settlement
	effect   effect
}

func reject(reason string) verdict {
	return verdict{reason: reason}
}

func accept(settle settlement, fx effect) verdict {
	return verdict{accepted: true, settle: settle, effect: fx}
}

const (
	reasonNotAllowed    = "transition not allowed"
	reasonNeedsComment  = "admin comment required"
	reasonNeedsSession  = "session time required"
	reasonNeedsAssignee = "translator change required"
)

type transitionHandler func(t *transition) verdict

// statusTable maps the current status to the handler deciding every proposal from it.
// Statuses without a row reject all proposals.
var statusTable = map[entity.BookingStatus]transitionHandler{
	entity.BookingStatusTimedOut:         fromTimedOut,
	entity.BookingStatusCompleted:        fromCompleted,
	entity.BookingStatusStarted:          fromStarted,
	entity.BookingStatusPending:          fromPending,
	entity.BookingStatusWithdrawnAfter24: fromWithdrawnAfter24,
	entity.BookingStatusAssigned:         fromAssigned,
}

func decide(t *transition) verdict {
	handler, ok := statusTable[t.from]
	if !ok || !t.to.Valid() {
		return reject(reasonNotAllowed)
	}
	return handler(t)
}

func fromTimedOut(t *transition) verdict {
	switch {
	case t.to == entity.BookingStatusPending:
		t.booking.CreatedAt = t.now
		t.booking.EmailSent = 0
		t.booking.EmailSentToVirpal = 0
		expires := t.expiry(t.now, t.booking.Due)
		t.booking.WillExpireAt = &expires
		return accept(settleNone, notifyReopened)
	case t.to == entity.BookingStatusAssigned && t.translatorChanged:
		return accept(settleNone, notifyAcceptedFromTimedOut)
	}
	return reject(reasonNotAllowed)
}

func fromCompleted(t *transition) verdict {
	if t.to != entity.BookingStatusTimedOut {
		return reject(reasonNotAllowed)
	}
	if t.comment == "" {
		return reject(reasonNeedsComment)
	}
	return accept(settleNone, nil)
}

func fromStarted(t *transition) verdict {
	if t.to != entity.BookingStatusCompleted {
		return reject(reasonNotAllowed)
	}
	if t.comment == "" {
		return reject(reasonNeedsComment)
	}
	if t.sessionTime == "" {
		return reject(reasonNeedsSession)
	}
	t.booking.SessionTime = t.sessionTime
	t.booking.EndAt = &t.now
	return accept(settleComplete, notifySessionEnded)
}

func fromPending(t *transition) verdict {
	switch t.to {
	case entity.BookingStatusAssigned:
		if t.comment == "" {
			return reject(reasonNeedsComment)
		}
		if !t.translatorChanged {
			return reject(reasonNeedsAssignee)
		}
		return accept(settleNone, notifyAssigned)
	case entity.BookingStatusTimedOut, entity.BookingStatusWithdrawnBefore24, entity.BookingStatusWithdrawnAfter24:
		if t.comment == "" {
			return reject(reasonNeedsComment)
		}
		if t.to != entity.BookingStatusTimedOut {
			t.booking.WithdrawAt = &t.now
		}
		return accept(settleRelease, notifyWithdrawnPending)
	}
	return reject(reasonNotAllowed)
}

func fromWithdrawnAfter24(t *transition) verdict {
	if t.to != entity.BookingStatusTimedOut {
		return reject(reasonNotAllowed)
	}
	if t.comment == "" {
		return reject(reasonNeedsComment)
	}
	return accept(settleNone, nil)
}

func fromAssigned(t *transition) verdict {
	switch t.to {
	case entity.BookingStatusWithdrawnBefore24, entity.BookingStatusWithdrawnAfter24:
		if t.comment == "" {
			return reject(reasonNeedsComment)
		}
		t.booking.WithdrawAt = &t.now
		return accept(settleRelease, notifyWithdrawnAssigned)
	case entity.BookingStatusTimedOut:
		if t.comment == "" {
			return reject(reasonNeedsComment)
		}
		return accept(settleRelease, nil)
	}
	return reject(reasonNotAllowed)
}

// settleInto merges the assignment settlement into the mutation. An assignment created by
// the same update is settled in place instead of being written twice.
func settleInto(m *entity.BookingMutation, how settlement, active *entity.Assignment, actorID int64, now time.Time) {
	switch how {
	case settleRelease:
		if m.Create != nil {
			m.Create.CancelAt = &now
			return
		}
		m.Cancel = ledger.PlanRelease(active, now)
	case settleComplete:
		if m.Create != nil {
			m.Create.CompletedAt = &now
			m.Create.CompletedBy = &actorID
			return
		}
		m.Complete = ledger.PlanComplete(active, actorID, now)
	}
}

// Side effects, run after the change is committed.

func notifyReopened(ctx context.Context, s *bookingService, t *transition, n *notice) {
	customer := s.partyOrFailure(ctx, n, "customer", func() (*party, error) { return s.customerParty(ctx, t.booking) })
	s.letter(ctx, n, customer, fmt.Sprintf("Booking #%d has been reopened", t.booking.ID), tplJobReopened, nil)
	s.broadcast(ctx, n, 0)
}

func notifyAcceptedFromTimedOut(ctx context.Context, s *bookingService, t *transition, n *notice) {
	customer := s.partyOrFailure(ctx, n, "customer", func() (*party, error) { return s.customerParty(ctx, t.booking) })
	s.letter(ctx, n, customer, fmt.Sprintf("An interpreter has accepted booking #%d", t.booking.ID), tplJobAccepted, nil)
}

func notifyAssigned(ctx context.Context, s *bookingService, t *transition, n *notice) {
	customer := s.partyOrFailure(ctx, n, "customer", func() (*party, error) { return s.customerParty(ctx, t.booking) })
	interpreter := s.partyOrFailure(ctx, n, "interpreter", func() (*party, error) { return s.interpreterParty(ctx, t.interpreterID) })
	s.letter(ctx, n, customer, fmt.Sprintf("An interpreter has accepted booking #%d", t.booking.ID), tplJobAccepted, nil)
	s.letter(ctx, n, interpreter, fmt.Sprintf("You have been assigned booking #%d", t.booking.ID), tplJobAssignedInterpreter, nil)
	s.remind(ctx, n, customer, interpreter)
}

func notifyWithdrawnPending(ctx context.Context, s *bookingService, t *transition, n *notice) {
	customer := s.partyOrFailure(ctx, n, "customer", func() (*party, error) { return s.customerParty(ctx, t.booking) })
	s.letter(ctx, n, customer, fmt.Sprintf("Booking #%d has been withdrawn", t.booking.ID), tplJobWithdrawn, nil)
}

func notifyWithdrawnAssigned(ctx context.Context, s *bookingService, t *transition, n *notice) {
	customer := s.partyOrFailure(ctx, n, "customer", func() (*party, error) { return s.customerParty(ctx, t.booking) })
	s.letter(ctx, n, customer, fmt.Sprintf("Booking #%d has been withdrawn", t.booking.ID), tplJobWithdrawn, nil)
	if t.interpreterID == 0 {
		return
	}
	interpreter := s.partyOrFailure(ctx, n, "interpreter", func() (*party, error) { return s.interpreterParty(ctx, t.interpreterID) })
	s.letter(ctx, n, interpreter, fmt.Sprintf("Booking #%d has been cancelled by the customer", t.booking.ID), tplJobCancelInterpreter, nil)
}

func notifySessionEnded(ctx context.Context, s *bookingService, t *transition, n *notice) {
	s.sessionLetters(ctx, n, t.booking, t.interpreterID)
}

// partyOrFailure loads one party, recording a failure on the outcome when it cannot be resolved.
func (s *bookingService) partyOrFailure(ctx context.Context, n *notice, role string, load func() (*party, error)) *party {
	p, err := load()
	if err != nil {
		s.logger.WithField("booking_id", n.booking.ID).Warnf("Failed to load %s for notification: %v", role, err)
		n.out.AddFailure(channelEmail, role, "", err)
		return nil
	}
	return p
}
