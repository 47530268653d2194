package entity

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleCustomer   UserRole = "customer"
	RoleTranslator UserRole = "translator"
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "superadmin"
)

type User struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone" db:"phone"`
	Role      UserRole  `json:"user_type" db:"user_type"`
	Active    bool      `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// Label is how the user appears in audit records.
func (u *User) Label() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type ConsumerType string

const (
	ConsumerPaid ConsumerType = "paid"
	ConsumerRWS  ConsumerType = "rwsconsumer"
	ConsumerNGO  ConsumerType = "ngo"
)

// JobType maps the consumer type of a customer to the job type of their bookings.
func (c ConsumerType) JobType() JobType {
	switch c {
	case ConsumerRWS:
		return JobTypeRWS
	case ConsumerNGO:
		return JobTypeUnpaid
	default:
		return JobTypePaid
	}
}

type CustomerProfile struct {
	UserID       int64        `json:"user_id" db:"user_id"`
	ConsumerType ConsumerType `json:"consumer_type" db:"consumer_type"`
	City         string       `json:"city" db:"city"`
	Address      string       `json:"address" db:"address"`
	Instructions string       `json:"instructions" db:"instructions"`

	Push PushPreferences `json:"push"`
}

// InterpreterTier is the contract an interpreter works under.
type InterpreterTier string

const (
	TierProfessional  InterpreterTier = "professional"
	TierRWSTranslator InterpreterTier = "rwstranslator"
	TierVolunteer     InterpreterTier = "volunteer"
)

// JobType is the booking job type an interpreter of this tier may take.
func (t InterpreterTier) JobType() JobType {
	switch t {
	case TierProfessional:
		return JobTypePaid
	case TierRWSTranslator:
		return JobTypeRWS
	case TierVolunteer:
		return JobTypeUnpaid
	}
	return ""
}

type CertificationLevel string

const (
	LevelCertified       CertificationLevel = "Certified"
	LevelCertifiedLaw    CertificationLevel = "Certified with specialisation in law"
	LevelCertifiedHealth CertificationLevel = "Certified with specialisation in health care"
	LevelLayman          CertificationLevel = "Layman"
	LevelCourses         CertificationLevel = "Read Translation courses"
)

type InterpreterProfile struct {
	UserID          int64                `json:"user_id" db:"user_id"`
	Email           string               `json:"email" db:"email"`
	Name            string               `json:"name" db:"name"`
	Phone           string               `json:"phone" db:"phone"`
	Tier            InterpreterTier      `json:"translator_type" db:"translator_type"`
	Levels          []CertificationLevel `json:"levels"`
	Gender          Gender               `json:"gender" db:"gender"`
	Languages       []int64              `json:"languages"`
	Town            string               `json:"town" db:"town"`
	NoPush          bool                 `json:"not_get_notification" db:"not_get_notification"`
	NoEmergencyPush bool                 `json:"not_get_emergency" db:"not_get_emergency"`
	NoNightPush     bool                 `json:"not_get_nighttime" db:"not_get_nighttime"`
}

func (p *InterpreterProfile) Speaks(languageID int64) bool {
	for _, id := range p.Languages {
		if id == languageID {
			return true
		}
	}
	return false
}

func (p *InterpreterProfile) HoldsAny(levels map[CertificationLevel]struct{}) bool {
	for _, l := range p.Levels {
		if _, ok := levels[l]; ok {
			return true
		}
	}
	return false
}

// SameTown compares towns ignoring case and surrounding whitespace.
func SameTown(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// PushPreferences are the push opt-outs a user has set.
type PushPreferences struct {
	NoPush          bool `json:"not_get_notification"`
	NoEmergencyPush bool `json:"not_get_emergency"`
	NoNightPush     bool `json:"not_get_nighttime"`
}

func (p *InterpreterProfile) Preferences() PushPreferences {
	return PushPreferences{
		NoPush:          p.NoPush,
		NoEmergencyPush: p.NoEmergencyPush,
		NoNightPush:     p.NoNightPush,
	}
}

type Language struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"language" db:"language"`
}
