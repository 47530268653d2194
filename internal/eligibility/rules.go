package eligibility

import (
	"github.com/ds124wfegd/interpreter-booking/internal/entity"
)

type Reason string

const (
	ReasonTier          Reason = "tier"
	ReasonBlacklisted   Reason = "blacklisted"
	ReasonLanguage      Reason = "language"
	ReasonCertification Reason = "certification"
	ReasonGender        Reason = "gender"
	ReasonTown          Reason = "town"
)

// Rules are the customer side facts that matching needs besides the two profiles.
type Rules struct {
	CustomerTown string
	Blacklisted  map[int64]struct{}
	TownOverride map[int64]struct{}
}

func NewRules(town string, blacklist, overrides []int64) Rules {
	return Rules{
		CustomerTown: town,
		Blacklisted:  toSet(blacklist),
		TownOverride: toSet(overrides),
	}
}

type levelSet map[entity.CertificationLevel]struct{}

var (
	certifiedLevels = levelSet{
		entity.LevelCertified:       {},
		entity.LevelCertifiedLaw:    {},
		entity.LevelCertifiedHealth: {},
	}
	lawLevels    = levelSet{entity.LevelCertifiedLaw: {}}
	healthLevels = levelSet{entity.LevelCertifiedHealth: {}}
	normalLevels = levelSet{
		entity.LevelLayman:  {},
		entity.LevelCourses: {},
	}
)

// AllowedLevels returns the levels that satisfy a certification requirement.
// A nil set means any level is accepted.
func AllowedLevels(c entity.Certification) map[entity.CertificationLevel]struct{} {
	switch c {
	case entity.CertificationYes, entity.CertificationCertified, entity.CertificationBoth:
		return certifiedLevels
	case entity.CertificationLaw, entity.CertificationNLaw:
		return lawLevels
	case entity.CertificationHealth, entity.CertificationNHealth:
		return healthLevels
	case entity.CertificationNormal:
		return normalLevels
	}
	return nil
}

// RequiresSameTown reports whether the interpreter has to be on site without a phone fallback.
func RequiresSameTown(b *entity.Booking) bool {
	return b.PhysicalType && !b.PhoneType
}

// Check returns the first rule the interpreter fails for the booking, or "" when eligible.
func Check(b *entity.Booking, p *entity.InterpreterProfile, r Rules) Reason {
	if p.Tier.JobType() != b.JobType {
		return ReasonTier
	}
	if _, ok := r.Blacklisted[p.UserID]; ok {
		return ReasonBlacklisted
	}
	if !p.Speaks(b.FromLanguageID) {
		return ReasonLanguage
	}
	if allowed := AllowedLevels(b.Certified); allowed != nil && !p.HoldsAny(allowed) {
		return ReasonCertification
	}
	if b.Gender != entity.GenderAny && p.Gender != b.Gender {
		return ReasonGender
	}
	if RequiresSameTown(b) {
		if _, ok := r.TownOverride[p.UserID]; !ok && !entity.SameTown(p.Town, r.CustomerTown) {
			return ReasonTown
		}
	}
	return ""
}

func Matches(b *entity.Booking, p *entity.InterpreterProfile, r Rules) bool {
	return Check(b, p, r) == ""
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
