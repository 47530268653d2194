package entity

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusPending               BookingStatus = "pending"
	BookingStatusAssigned              BookingStatus = "assigned"
	BookingStatusStarted               BookingStatus = "started"
	BookingStatusCompleted             BookingStatus = "completed"
	BookingStatusTimedOut              BookingStatus = "timedout"
	BookingStatusWithdrawnBefore24     BookingStatus = "withdrawbefore24"
	BookingStatusWithdrawnAfter24      BookingStatus = "withdrawafter24"
	BookingStatusNotCarriedOutCustomer BookingStatus = "not_carried_out_customer"
)

// AllBookingStatuses lists every status in lifecycle order.
var AllBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusAssigned,
	BookingStatusStarted,
	BookingStatusCompleted,
	BookingStatusTimedOut,
	BookingStatusWithdrawnBefore24,
	BookingStatusWithdrawnAfter24,
	BookingStatusNotCarriedOutCustomer,
}

func (s BookingStatus) Valid() bool {
	for _, known := range AllBookingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether a fresh booking record is needed to continue.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusWithdrawnBefore24,
		BookingStatusWithdrawnAfter24, BookingStatusNotCarriedOutCustomer:
		return true
	}
	return false
}

// JobType is the service category a booking is billed under.
type JobType string

const (
	JobTypePaid   JobType = "paid"
	JobTypeRWS    JobType = "rws"
	JobTypeUnpaid JobType = "unpaid"
)

// Certification is the interpreter qualification a booking asks for.
type Certification string

const (
	CertificationAny       Certification = ""
	CertificationYes       Certification = "yes"
	CertificationCertified Certification = "certified"
	CertificationBoth      Certification = "both"
	CertificationLaw       Certification = "law"
	CertificationNLaw      Certification = "n_law"
	CertificationHealth    Certification = "health"
	CertificationNHealth   Certification = "n_health"
	CertificationNormal    Certification = "normal"
)

type Gender string

const (
	GenderAny    Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Booking struct {
	ID                int64         `json:"id" db:"id"`
	CustomerID        int64         `json:"user_id" db:"user_id"`
	FromLanguageID    int64         `json:"from_language_id" db:"from_language_id"`
	Immediate         bool          `json:"immediate" db:"immediate"`
	PhoneType         bool          `json:"customer_phone_type" db:"customer_phone_type"`
	PhysicalType      bool          `json:"customer_physical_type" db:"customer_physical_type"`
	JobType           JobType       `json:"job_type" db:"job_type"`
	Certified         Certification `json:"certified" db:"certified"`
	Gender            Gender        `json:"gender" db:"gender"`
	Due               time.Time     `json:"due" db:"due"`
	Duration          int           `json:"duration" db:"duration"`
	Status            BookingStatus `json:"status" db:"status"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	WillExpireAt      *time.Time    `json:"will_expire_at,omitempty" db:"will_expire_at"`
	EndAt             *time.Time    `json:"end_at,omitempty" db:"end_at"`
	WithdrawAt        *time.Time    `json:"withdraw_at,omitempty" db:"withdraw_at"`
	SessionTime       string        `json:"session_time,omitempty" db:"session_time"`
	AdminComments     string        `json:"admin_comments" db:"admin_comments"`
	Reference         string        `json:"reference" db:"reference"`
	UserEmail         string        `json:"user_email" db:"user_email"`
	Address           string        `json:"address" db:"address"`
	Instructions      string        `json:"instructions" db:"instructions"`
	Town              string        `json:"town" db:"town"`
	EmailSent         int           `json:"emailsent" db:"emailsent"`
	EmailSentToVirpal int           `json:"emailsenttovirpal" db:"emailsenttovirpal"`
	IgnoreExpiring    bool          `json:"ignore" db:"ignore_expiring"`
	IgnoreExpired     bool          `json:"ignore_expired" db:"ignore_expired"`
	Flagged           bool          `json:"flagged" db:"flagged"`
	ManuallyHandled   bool          `json:"manually_handled" db:"manually_handled"`
	ByAdmin           bool          `json:"by_admin" db:"by_admin"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// Clone returns a copy safe to mutate without touching the original.
func (b *Booking) Clone() *Booking {
	c := *b
	c.WillExpireAt = cloneTime(b.WillExpireAt)
	c.EndAt = cloneTime(b.EndAt)
	c.WithdrawAt = cloneTime(b.WithdrawAt)
	return &c
}

// ContactEmail is where booking correspondence for the customer goes.
func (b *Booking) ContactEmail(customer *User) string {
	if b.UserEmail != "" {
		return b.UserEmail
	}
	if customer != nil {
		return customer.Email
	}
	return ""
}

// Distance is the travel information recorded for physical bookings.
type Distance struct {
	BookingID int64  `json:"job_id" db:"job_id"`
	Distance  string `json:"distance" db:"distance"`
	Time      string `json:"time" db:"time"`
}

// ExpiredBooking is a pending booking whose acceptance window has closed.
type ExpiredBooking struct {
	BookingID    int64     `json:"booking_id"`
	CustomerID   int64     `json:"user_id"`
	WillExpireAt time.Time `json:"will_expire_at"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
