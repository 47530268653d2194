package entity

import "time"

type BookingEventType string

const (
	EventBookingCreated   BookingEventType = "booking.created"
	EventBookingAccepted  BookingEventType = "booking.accepted"
	EventBookingCancelled BookingEventType = "booking.cancelled"
	EventBookingReopened  BookingEventType = "booking.reopened"
	EventSessionEnded     BookingEventType = "session.ended"
)

// BookingEvent is published after a lifecycle change has been committed.
type BookingEvent struct {
	ID         string           `json:"id"`
	Type       BookingEventType `json:"type"`
	BookingID  int64            `json:"job_id"`
	ActorID    int64            `json:"actor_id"`
	ReceiverID int64            `json:"receiver_id,omitempty"`
	Status     BookingStatus    `json:"status"`
	OccurredAt time.Time        `json:"occurred_at"`
}
