package entity

import "time"

type OutcomeStatus string

const (
	OutcomeApplied  OutcomeStatus = "applied"
	OutcomeRejected OutcomeStatus = "rejected"
	OutcomeNoop     OutcomeStatus = "noop"
)

type DeltaKind string

const (
	DeltaTranslator DeltaKind = "translator"
	DeltaDue        DeltaKind = "due"
	DeltaLanguage   DeltaKind = "language"
	DeltaStatus     DeltaKind = "status"
	DeltaComment    DeltaKind = "admin_comments"
	DeltaReference  DeltaKind = "reference"
)

// Delta is one field change written to the audit log.
type Delta struct {
	Kind DeltaKind `json:"kind"`
	Old  string    `json:"old"`
	New  string    `json:"new"`
}

// NotificationFailure records a side effect that did not go through.
// The state change it belonged to stays committed.
type NotificationFailure struct {
	Channel   string `json:"channel"`
	Kind      string `json:"kind"`
	Recipient string `json:"recipient,omitempty"`
	Error     string `json:"error"`
}

// Outcome is the structured result of a lifecycle operation.
type Outcome struct {
	Status    OutcomeStatus         `json:"status"`
	BookingID int64                 `json:"booking_id"`
	Message   string                `json:"message,omitempty"`
	Deltas    []Delta               `json:"deltas,omitempty"`
	Failures  []NotificationFailure `json:"notification_failures,omitempty"`
}

func (o *Outcome) Applied() bool {
	return o.Status == OutcomeApplied
}

// SideEffectsFailed reports an applied change whose notifications partly failed.
func (o *Outcome) SideEffectsFailed() bool {
	return o.Status == OutcomeApplied && len(o.Failures) > 0
}

func (o *Outcome) AddFailure(channel, kind, recipient string, err error) {
	if err == nil {
		return
	}
	o.Failures = append(o.Failures, NotificationFailure{
		Channel:   channel,
		Kind:      kind,
		Recipient: recipient,
		Error:     err.Error(),
	})
}

// StatusTransition describes what happened to a proposed status change.
type StatusTransition struct {
	From     BookingStatus `json:"from"`
	To       BookingStatus `json:"to"`
	Accepted bool          `json:"accepted"`
	Reason   string        `json:"reason,omitempty"`
}

// UpdateOutcome is returned by the general booking update.
type UpdateOutcome struct {
	Outcome
	TranslatorChanged bool              `json:"translator_changed"`
	Transition        *StatusTransition `json:"status_transition,omitempty"`
}

// AcceptOutcome is returned when an interpreter accepts a booking.
type AcceptOutcome struct {
	Outcome
	Reason ConflictReason `json:"reason,omitempty"`
}

// CancelOutcome is returned by customer and interpreter cancellation.
type CancelOutcome struct {
	Outcome
	NewStatus BookingStatus `json:"new_status,omitempty"`
}

// SessionOutcome is returned by session completion.
type SessionOutcome struct {
	Outcome
	SessionTime string     `json:"session_time,omitempty"`
	EndedAt     *time.Time `json:"end_at,omitempty"`
}

// CreateResult is returned after a booking is stored.
type CreateResult struct {
	ID           int64         `json:"id"`
	Type         string        `json:"type"`
	Status       BookingStatus `json:"status"`
	Due          time.Time     `json:"due"`
	WillExpireAt time.Time     `json:"will_expire_at"`
}
