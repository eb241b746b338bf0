package scheduling

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/lesson-engine/schedule"
)

// ValidateSettings checks an owner's settings before they are saved.
func ValidateSettings(st schedule.Settings) error {
	if st.DefaultHourlyRate.IsNegative() {
		return schedule.Invalid("default_hourly_rate", "must not be negative")
	}
	if !st.DefaultNoShowRule.Valid() {
		return schedule.Invalid("default_no_show_fee_rule", "must be NONE, HALF or FULL")
	}
	if _, err := time.LoadLocation(st.Timezone); err != nil || st.Timezone == "" {
		return schedule.Invalid("timezone", "is not a known IANA zone")
	}
	start, err := time.Parse("15:04", st.WorkdayStart)
	if err != nil {
		return schedule.Invalid("workday_start", "must be HH:MM")
	}
	end, err := time.Parse("15:04", st.WorkdayEnd)
	if err != nil {
		return schedule.Invalid("workday_end", "must be HH:MM")
	}
	if !end.After(start) {
		return schedule.Invalid("workday_end", "must be after workday_start")
	}
	if st.WeekStart < time.Sunday || st.WeekStart > time.Saturday {
		return schedule.Invalid("week_start", "must be between 0 and 6")
	}
	if st.OverdueDays < 0 {
		return schedule.Invalid("overdue_days", "must not be negative")
	}
	return nil
}

func (s *Service) GetSettings(ctx context.Context, owner schedule.OwnerID) (schedule.Settings, error) {
	return s.loadSettings(ctx, s.store, owner)
}

// loadSettings reads the owner's settings through st. Owners that never saved
// any get the service's default timezone.
func (s *Service) loadSettings(ctx context.Context, st schedule.Store, owner schedule.OwnerID) (schedule.Settings, error) {
	settings, err := st.GetSettings(ctx, owner)
	if err != nil {
		return schedule.Settings{}, schedule.Persistence("load settings", err)
	}
	if settings.UpdatedAt.IsZero() && s.defaultTimezone != "" {
		settings.Timezone = s.defaultTimezone
	}
	return settings, nil
}

func (s *Service) SaveSettings(ctx context.Context, st schedule.Settings) (schedule.Settings, error) {
	if err := ValidateSettings(st); err != nil {
		return schedule.Settings{}, err
	}
	if err := s.store.SaveSettings(ctx, st); err != nil {
		return schedule.Settings{}, schedule.Persistence("save settings", err)
	}
	s.logger.Info("settings saved", zap.String("owner", string(st.OwnerID)), zap.String("timezone", st.Timezone))
	return s.loadSettings(ctx, s.store, st.OwnerID)
}
