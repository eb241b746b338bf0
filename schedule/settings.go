package schedule

import (
	"time"
	_ "time/tzdata" // owner timezones must resolve on minimal images

	"github.com/shopspring/decimal"
)

// DefaultTimezone is the zone lessons are scheduled in when an owner has not chosen one.
const DefaultTimezone = "Europe/Istanbul"

// Settings holds an owner's fallback defaults. It is passed explicitly into
// creation calls rather than read from global state.
type Settings struct {
	OwnerID           OwnerID
	DefaultHourlyRate decimal.Decimal
	DefaultNoShowRule NoShowRule
	Timezone          string
	WorkdayStart      string // HH:MM
	WorkdayEnd        string // HH:MM
	WeekStart         time.Weekday
	OverdueDays       int
	UpdatedAt         time.Time // zero until the owner saves settings
}

// DefaultSettings returns the settings an owner has before saving any.
// Callers may override Timezone with a deployment-wide default.
func DefaultSettings(owner OwnerID) Settings {
	return Settings{
		OwnerID:           owner,
		DefaultHourlyRate: decimal.Zero,
		DefaultNoShowRule: NoShowNone,
		Timezone:          DefaultTimezone,
		WorkdayStart:      "08:00",
		WorkdayEnd:        "22:00",
		WeekStart:         time.Monday,
		OverdueDays:       7,
	}
}

// Location resolves the owner's timezone. An unknown zone name falls back to
// a fixed UTC+3 offset.
func (s Settings) Location() *time.Location {
	name := s.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("UTC+3", 3*60*60)
	}
	return loc
}
