package eligibility

import (
	"testing"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/stretchr/testify/assert"
)

func baseBooking() *entity.Booking {
	return &entity.Booking{
		ID:             1,
		CustomerID:     10,
		FromLanguageID: 7,
		JobType:        entity.JobTypePaid,
		PhoneType:      true,
	}
}

func baseInterpreter() *entity.InterpreterProfile {
	return &entity.InterpreterProfile{
		UserID:    100,
		Tier:      entity.TierProfessional,
		Languages: []int64{7},
		Levels:    []entity.CertificationLevel{entity.LevelCertified},
		Gender:    entity.GenderFemale,
		Town:      "Stockholm",
	}
}

// TestCheck тестирует правила подбора по одному
func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		booking func(b *entity.Booking)
		profile func(p *entity.InterpreterProfile)
		rules   Rules
		want    Reason
	}{
		{
			name: "eligible with no requirements",
			want: "",
		},
		{
			name:    "tier must match job type",
			profile: func(p *entity.InterpreterProfile) { p.Tier = entity.TierVolunteer },
			want:    ReasonTier,
		},
		{
			name:    "rws translator takes rws jobs",
			booking: func(b *entity.Booking) { b.JobType = entity.JobTypeRWS },
			profile: func(p *entity.InterpreterProfile) { p.Tier = entity.TierRWSTranslator },
			want:    "",
		},
		{
			name:  "blacklisted by the customer",
			rules: NewRules("", []int64{100}, nil),
			want:  ReasonBlacklisted,
		},
		{
			name:    "language not spoken",
			profile: func(p *entity.InterpreterProfile) { p.Languages = []int64{8, 9} },
			want:    ReasonLanguage,
		},
		{
			name:    "law certification required",
			booking: func(b *entity.Booking) { b.Certified = entity.CertificationLaw },
			want:    ReasonCertification,
		},
		{
			name:    "law certification held",
			booking: func(b *entity.Booking) { b.Certified = entity.CertificationNLaw },
			profile: func(p *entity.InterpreterProfile) { p.Levels = []entity.CertificationLevel{entity.LevelCertifiedLaw} },
			want:    "",
		},
		{
			name:    "normal booking excludes certified only interpreters",
			booking: func(b *entity.Booking) { b.Certified = entity.CertificationNormal },
			want:    ReasonCertification,
		},
		{
			name:    "gender mismatch",
			booking: func(b *entity.Booking) { b.Gender = entity.GenderMale },
			want:    ReasonGender,
		},
		{
			name: "physical only booking needs the same town",
			booking: func(b *entity.Booking) {
				b.PhoneType = false
				b.PhysicalType = true
			},
			rules: NewRules("Uppsala", nil, nil),
			want:  ReasonTown,
		},
		{
			name: "town compare ignores case and spaces",
			booking: func(b *entity.Booking) {
				b.PhoneType = false
				b.PhysicalType = true
			},
			rules: NewRules("  stockholm ", nil, nil),
			want:  "",
		},
		{
			name: "town override lifts the town rule",
			booking: func(b *entity.Booking) {
				b.PhoneType = false
				b.PhysicalType = true
			},
			rules: NewRules("Uppsala", nil, []int64{100}),
			want:  "",
		},
		{
			name: "phone fallback ignores the town",
			booking: func(b *entity.Booking) {
				b.PhysicalType = true
			},
			rules: NewRules("Uppsala", nil, nil),
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, p := baseBooking(), baseInterpreter()
			if tt.booking != nil {
				tt.booking(b)
			}
			if tt.profile != nil {
				tt.profile(p)
			}

			assert.Equal(t, tt.want, Check(b, p, tt.rules))
			assert.Equal(t, tt.want == "", Matches(b, p, tt.rules))
		})
	}
}

func TestAllowedLevels(t *testing.T) {
	tests := []struct {
		certified entity.Certification
		want      []entity.CertificationLevel
	}{
		{entity.CertificationAny, nil},
		{entity.CertificationYes, []entity.CertificationLevel{entity.LevelCertified, entity.LevelCertifiedLaw, entity.LevelCertifiedHealth}},
		{entity.CertificationBoth, []entity.CertificationLevel{entity.LevelCertified, entity.LevelCertifiedLaw, entity.LevelCertifiedHealth}},
		{entity.CertificationHealth, []entity.CertificationLevel{entity.LevelCertifiedHealth}},
		{entity.CertificationNHealth, []entity.CertificationLevel{entity.LevelCertifiedHealth}},
		{entity.CertificationNormal, []entity.CertificationLevel{entity.LevelLayman, entity.LevelCourses}},
	}

	for _, tt := range tests {
		t.Run(string(tt.certified), func(t *testing.T) {
			got := AllowedLevels(tt.certified)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Len(t, got, len(tt.want))
			for _, l := range tt.want {
				assert.Contains(t, got, l)
			}
		})
	}
}
