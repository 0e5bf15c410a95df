package report

import (
	"testing"

	"go-erp/internal/common/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestScheduleCronSpec(t *testing.T) {
	tests := []struct {
		name string
		cfg  ScheduleConfig
		want string
	}{
		{"hourly", ScheduleConfig{Frequency: FrequencyHourly, Time: "00:15"}, "15 * * * *"},
		{"hourly without time", ScheduleConfig{Frequency: FrequencyHourly}, "0 * * * *"},
		{"daily", ScheduleConfig{Frequency: FrequencyDaily, Time: "07:05"}, "5 7 * * *"},
		{"weekly default monday", ScheduleConfig{Frequency: FrequencyWeekly, Time: "09:00"}, "0 9 * * 1"},
		{"weekly sunday", ScheduleConfig{Frequency: FrequencyWeekly, Time: "09:00", Weekday: intPtr(0)}, "0 9 * * 0"},
		{"monthly default first", ScheduleConfig{Frequency: FrequencyMonthly, Time: "23:59"}, "59 23 1 * *"},
		{"monthly 15th", ScheduleConfig{Frequency: FrequencyMonthly, Time: "06:00", DayOfMonth: 15}, "0 6 15 * *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Normalize()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.CronSpec())
		})
	}
}

func TestScheduleNormalizeErrors(t *testing.T) {
	tests := []struct {
		name      string
		cfg       ScheduleConfig
		wantField string
	}{
		{"missing frequency", ScheduleConfig{Time: "08:00"}, "schedule_config.frequency"},
		{"bad frequency", ScheduleConfig{Frequency: "yearly", Time: "08:00"}, "schedule_config.frequency"},
		{"missing time", ScheduleConfig{Frequency: FrequencyDaily}, "schedule_config.time"},
		{"hour out of range", ScheduleConfig{Frequency: FrequencyDaily, Time: "24:00"}, "schedule_config.time"},
		{"minute out of range", ScheduleConfig{Frequency: FrequencyDaily, Time: "10:60"}, "schedule_config.time"},
		{"weekday out of range", ScheduleConfig{Frequency: FrequencyWeekly, Time: "10:00", Weekday: intPtr(7)}, "schedule_config.weekday"},
		{"day of month out of range", ScheduleConfig{Frequency: FrequencyMonthly, Time: "10:00", DayOfMonth: 31}, "schedule_config.day_of_month"},
		{"bad format", ScheduleConfig{Frequency: FrequencyDaily, Time: "10:00", Format: "docx"}, "schedule_config.format"},
		{"bad recipient", ScheduleConfig{Frequency: FrequencyDaily, Time: "10:00", Recipients: []string{"ok@example.com", "not an address"}}, "schedule_config.recipients[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Normalize()
			var verr *errs.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestScheduleEnabledWithoutRecipients(t *testing.T) {
	got, err := ScheduleConfig{Enabled: true, Frequency: FrequencyDaily, Time: "08:00"}.Normalize()
	require.NoError(t, err)
	assert.Empty(t, got.Recipients)
	assert.True(t, got.Enabled)
}
