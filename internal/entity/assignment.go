package entity

import "time"

// Assignment links one interpreter to one booking.
type Assignment struct {
	ID            int64      `json:"id" db:"id"`
	BookingID     int64      `json:"job_id" db:"job_id"`
	InterpreterID int64      `json:"user_id" db:"user_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	CancelAt      *time.Time `json:"cancel_at,omitempty" db:"cancel_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CompletedBy   *int64     `json:"completed_by,omitempty" db:"completed_by"`
}

// Active reports whether the assignment is neither superseded nor finalized.
func (a *Assignment) Active() bool {
	return a.CancelAt == nil && a.CompletedAt == nil
}

// AssignmentWindow is an active assignment together with the time span it occupies.
type AssignmentWindow struct {
	AssignmentID int64     `json:"assignment_id"`
	BookingID    int64     `json:"job_id"`
	Due          time.Time `json:"due"`
	Duration     int       `json:"duration"`
}

// End returns the instant the booked session is expected to finish.
func (w AssignmentWindow) End() time.Time {
	return w.Due.Add(time.Duration(w.Duration) * time.Minute)
}

// BookingMutation is everything one lifecycle operation writes, applied atomically.
type BookingMutation struct {
	Booking  *Booking
	Cancel   *Assignment
	Complete *Assignment
	Create   *Assignment
}
