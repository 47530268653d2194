package notification

import (
	"strings"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
)

// Kind names what a push is about.
type Kind string

const (
	KindSuitableJob        Kind = "suitable_job"
	KindJobAccepted        Kind = "job_accepted"
	KindJobCancelled       Kind = "job_cancelled"
	KindJobExpired         Kind = "job_expired"
	KindSessionStartRemind Kind = "session_start_remind"
)

const DefaultLocale = "en"

// Payload is the data block attached to every push.
type Payload struct {
	BookingID    int64     `json:"job_id"`
	Kind         Kind      `json:"notification_type"`
	Language     string    `json:"language"`
	Duration     int       `json:"duration"`
	Due          time.Time `json:"due"`
	Immediate    bool      `json:"immediate"`
	PhoneType    bool      `json:"customer_phone_type"`
	PhysicalType bool      `json:"customer_physical_type"`
}

// NewPayload fills the booking fields of a payload.
func NewPayload(kind Kind, b *entity.Booking, language string) Payload {
	return Payload{
		BookingID:    b.ID,
		Kind:         kind,
		Language:     language,
		Duration:     b.Duration,
		Due:          b.Due,
		Immediate:    b.Immediate,
		PhoneType:    b.PhoneType,
		PhysicalType: b.PhysicalType,
	}
}

func (p Payload) Map() map[string]interface{} {
	return map[string]interface{}{
		"job_id":                 p.BookingID,
		"notification_type":      string(p.Kind),
		"language":               p.Language,
		"duration":               p.Duration,
		"due":                    p.Due.Format("2006-01-02 15:04:05"),
		"immediate":              yesNo(p.Immediate),
		"customer_phone_type":    yesNo(p.PhoneType),
		"customer_physical_type": yesNo(p.PhysicalType),
	}
}

// Message is human readable text keyed by locale code.
type Message map[string]string

func Text(s string) Message {
	return Message{DefaultLocale: s}
}

// DeliveryClass carries urgency and the earliest delivery instant.
type DeliveryClass struct {
	Emergency bool
	NotBefore time.Time
}

var Standard = DeliveryClass{}

func Urgent() DeliveryClass {
	return DeliveryClass{Emergency: true}
}

func ScheduledAt(t time.Time) DeliveryClass {
	return DeliveryClass{NotBefore: t}
}

// Recipient is one addressee of a push fan-out.
type Recipient struct {
	UserID int64
	Email  string
	Prefs  entity.PushPreferences
}

func InterpreterRecipient(p *entity.InterpreterProfile) Recipient {
	return Recipient{UserID: p.UserID, Email: p.Email, Prefs: p.Preferences()}
}

func (r Recipient) key() string {
	return strings.ToLower(strings.TrimSpace(r.Email))
}

// Sound is the audio cue per platform.
type Sound struct {
	Android string `json:"android_sound"`
	IOS     string `json:"ios_sound"`
}

var DefaultSound = Sound{Android: "default", IOS: "default"}

// SelectSound picks the cue for a push. Job offers get distinct normal and emergency
// sounds, other kinds only switch away from the default when urgent.
func SelectSound(kind Kind, immediate bool, class DeliveryClass) Sound {
	urgent := immediate || class.Emergency
	if kind == KindSuitableJob {
		if urgent {
			return Sound{Android: "emergency_booking", IOS: "emergency_booking.mp3"}
		}
		return Sound{Android: "normal_booking", IOS: "normal_booking.mp3"}
	}
	if class.Emergency {
		return Sound{Android: "emergency_booking", IOS: "emergency_booking.mp3"}
	}
	return DefaultSound
}

// TagExpression is an OR-joined list of email tag clauses.
type TagExpression []map[string]string

// EmailTags builds the tag expression that targets the given addresses.
func EmailTags(emails []string) TagExpression {
	expr := make(TagExpression, 0, len(emails)*2)
	for i, email := range emails {
		if i > 0 {
			expr = append(expr, map[string]string{"operator": "OR"})
		}
		expr = append(expr, map[string]string{
			"key":      "email",
			"relation": "=",
			"value":    strings.ToLower(email),
		})
	}
	return expr
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
