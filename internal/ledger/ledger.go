package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
)

// Store is the assignment storage the ledger reads from.
type Store interface {
	GetByBooking(ctx context.Context, bookingID int64) ([]*entity.Assignment, error)
	ActiveWindows(ctx context.Context, interpreterID int64) ([]entity.AssignmentWindow, error)
}

// Ledger is the source of truth for who is, or was, assigned to a booking.
type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// History returns all assignments of a booking, oldest first.
func (l *Ledger) History(ctx context.Context, bookingID int64) ([]*entity.Assignment, error) {
	history, err := l.store.GetByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments of booking %d: %w", bookingID, err)
	}
	return history, nil
}

// Active returns the assignment that is neither cancelled nor completed, or nil.
func (l *Ledger) Active(ctx context.Context, bookingID int64) (*entity.Assignment, error) {
	history, err := l.History(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return activeOf(history), nil
}

// Current returns the active assignment, falling back to the most recently completed one.
func (l *Ledger) Current(ctx context.Context, bookingID int64) (*entity.Assignment, error) {
	history, err := l.History(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if a := activeOf(history); a != nil {
		return a, nil
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].CompletedAt != nil {
			return history[i], nil
		}
	}
	return nil, nil
}

// HasOverlap reports whether the interpreter already holds an active assignment
// whose session overlaps the booking.
func (l *Ledger) HasOverlap(ctx context.Context, interpreterID int64, b *entity.Booking) (bool, error) {
	windows, err := l.store.ActiveWindows(ctx, interpreterID)
	if err != nil {
		return false, fmt.Errorf("failed to load assignments of interpreter %d: %w", interpreterID, err)
	}
	target := entity.AssignmentWindow{BookingID: b.ID, Due: b.Due, Duration: b.Duration}
	for _, w := range windows {
		if w.BookingID != b.ID && Overlaps(w, target) {
			return true, nil
		}
	}
	return false, nil
}

// Overlaps treats two sessions starting at the same instant as overlapping even
// when no duration is known.
func Overlaps(a, b entity.AssignmentWindow) bool {
	if a.Due.Equal(b.Due) {
		return true
	}
	return a.Due.Before(b.End()) && b.Due.Before(a.End())
}

func activeOf(history []*entity.Assignment) *entity.Assignment {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Active() {
			return history[i]
		}
	}
	return nil
}

// Change is a planned set of ledger writes.
type Change struct {
	Cancel  *entity.Assignment
	Create  *entity.Assignment
	Changed bool
}

// PlanReassign decides what moving the booking to interpreterID means for the ledger.
// A zero interpreterID or the current interpreter yields no change.
func PlanReassign(current *entity.Assignment, bookingID, interpreterID int64, now time.Time) Change {
	if interpreterID == 0 {
		return Change{}
	}
	if current == nil {
		return Change{
			Create:  &entity.Assignment{BookingID: bookingID, InterpreterID: interpreterID, CreatedAt: now},
			Changed: true,
		}
	}
	if current.InterpreterID == interpreterID {
		return Change{}
	}

	superseded := *current
	superseded.CancelAt = &now

	next := *current
	next.ID = 0
	next.InterpreterID = interpreterID
	next.CreatedAt = now
	next.CancelAt = nil
	next.CompletedAt = nil
	next.CompletedBy = nil
	return Change{Cancel: &superseded, Create: &next, Changed: true}
}

// PlanRelease supersedes the active assignment without a successor.
func PlanRelease(active *entity.Assignment, now time.Time) *entity.Assignment {
	if active == nil || !active.Active() {
		return nil
	}
	released := *active
	released.CancelAt = &now
	return &released
}

// PlanComplete finalizes the active assignment.
func PlanComplete(active *entity.Assignment, completedBy int64, now time.Time) *entity.Assignment {
	if active == nil || !active.Active() {
		return nil
	}
	done := *active
	done.CompletedAt = &now
	done.CompletedBy = &completedBy
	return &done
}
