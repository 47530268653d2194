package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testZone = time.FixedZone("CET", 3600)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, testZone)
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("22:30")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 22, Minute: 30}, c)
	assert.Equal(t, "22:30", c.String())

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}

func TestNightPolicy_IsNight(t *testing.T) {
	wrapping := NightPolicy{Location: testZone, Start: ClockTime{Hour: 22}, End: ClockTime{Hour: 7}}
	inside := NightPolicy{Location: testZone, Start: ClockTime{Hour: 1}, End: ClockTime{Hour: 5}}
	empty := NightPolicy{Location: testZone, Start: ClockTime{Hour: 3}, End: ClockTime{Hour: 3}}

	tests := []struct {
		name   string
		policy NightPolicy
		t      time.Time
		want   bool
	}{
		{"late evening", wrapping, at(10, 23, 0), true},
		{"window start is night", wrapping, at(10, 22, 0), true},
		{"just before start", wrapping, at(10, 21, 59), false},
		{"early morning", wrapping, at(11, 6, 59), true},
		{"window end is day", wrapping, at(11, 7, 0), false},
		{"other zone converted", wrapping, time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC), true},
		{"window within a day", inside, at(10, 3, 0), true},
		{"after window within a day", inside, at(10, 6, 0), false},
		{"empty window", empty, at(10, 3, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.IsNight(tt.t))
		})
	}
}

func TestNightPolicy_NextBusinessTime(t *testing.T) {
	policy := NightPolicy{Location: testZone, Start: ClockTime{Hour: 22}, End: ClockTime{Hour: 7}}

	tests := []struct {
		name string
		t    time.Time
		want time.Time
	}{
		{"before midnight", at(10, 23, 30), at(11, 7, 0)},
		{"after midnight", at(11, 3, 0), at(11, 7, 0)},
		{"exactly at the end", at(11, 7, 0), at(12, 7, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.NextBusinessTime(tt.t)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.False(t, policy.IsNight(got))
		})
	}
}
