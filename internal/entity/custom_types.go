package entity

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DueTime is a wall clock due date as admins type it, without a zone.
// The service places it into the configured booking timezone.
type DueTime struct {
	time.Time
}

const DueTimeLayout = "2006-01-02 15:04"

func (dt *DueTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse(DueTimeLayout, s)
	if err != nil {
		// Браузерный datetime-local
		t, err = time.Parse("2006-01-02T15:04", s)
		if err != nil {
			return fmt.Errorf("due must look like %q: %w", DueTimeLayout, err)
		}
	}
	dt.Time = t
	return nil
}

func (dt DueTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + dt.Format(DueTimeLayout) + `"`), nil
}

// In keeps the wall clock and swaps the zone.
func (dt DueTime) In(loc *time.Location) time.Time {
	t := dt.Time
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

func (dt DueTime) Value() (driver.Value, error) {
	return dt.Time, nil
}

func (dt *DueTime) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		dt.Time = v
	case []byte:
		t, err := time.Parse("2006-01-02 15:04:05", string(v))
		if err != nil {
			return err
		}
		dt.Time = t
	default:
		return fmt.Errorf("cannot scan type %T into DueTime", value)
	}
	return nil
}
