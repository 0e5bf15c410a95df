package report

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"go-erp/internal/common/errs"

	"github.com/robfig/cron/v3"
)

type Frequency string

const (
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// DispatchFormats are the export formats a schedule may e-mail.
var DispatchFormats = []string{"pdf", "excel", "csv", "json"}

// ScheduleConfig drives unattended runs of a report.
type ScheduleConfig struct {
	Enabled    bool       `json:"enabled" bson:"enabled"`
	Frequency  Frequency  `json:"frequency" bson:"frequency"`
	Time       string     `json:"time" bson:"time"` // HH:MM
	Recipients []string   `json:"recipients" bson:"recipients"`
	Weekday    *int       `json:"weekday,omitempty" bson:"weekday,omitempty"`           // 0 = Sunday, weekly only
	DayOfMonth int        `json:"day_of_month,omitempty" bson:"day_of_month,omitempty"` // 1-28, monthly only
	Format     string     `json:"format,omitempty" bson:"format,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty" bson:"last_run_at,omitempty"`
}

// Normalize validates the schedule as a unit and fills defaults. The
// receiver is not modified.
func (s ScheduleConfig) Normalize() (ScheduleConfig, error) {
	out := s
	switch s.Frequency {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	case "":
		return out, errs.Missing("schedule_config.frequency")
	default:
		return out, errs.Validation("schedule_config.frequency", "unknown frequency %q", s.Frequency)
	}

	if strings.TrimSpace(s.Time) == "" {
		if s.Frequency != FrequencyHourly {
			return out, errs.Missing("schedule_config.time")
		}
		out.Time = "00:00"
	}
	if _, _, err := parseClock(out.Time); err != nil {
		return out, errs.Validation("schedule_config.time", "%v", err)
	}

	out.Weekday = nil
	if s.Frequency == FrequencyWeekly {
		wd := 1
		if s.Weekday != nil {
			wd = *s.Weekday
		}
		if wd < 0 || wd > 6 {
			return out, errs.Validation("schedule_config.weekday", "must be between 0 and 6")
		}
		out.Weekday = &wd
	}

	out.DayOfMonth = 0
	if s.Frequency == FrequencyMonthly {
		out.DayOfMonth = s.DayOfMonth
		if out.DayOfMonth == 0 {
			out.DayOfMonth = 1
		}
		if out.DayOfMonth < 1 || out.DayOfMonth > 28 {
			return out, errs.Validation("schedule_config.day_of_month", "must be between 1 and 28")
		}
	}

	if out.Format == "" {
		out.Format = "pdf"
	}
	if !isDispatchFormat(out.Format) {
		return out, errs.Validation("schedule_config.format", "unsupported format %q", out.Format)
	}

	recipients := make([]string, 0, len(s.Recipients))
	seen := map[string]bool{}
	for i, raw := range s.Recipients {
		addr, err := mail.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			return out, errs.Validation(fmt.Sprintf("schedule_config.recipients[%d]", i), "invalid address %q", raw)
		}
		key := strings.ToLower(addr.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		recipients = append(recipients, addr.Address)
	}
	out.Recipients = recipients

	if _, err := cron.ParseStandard(out.CronSpec()); err != nil {
		return out, errs.Validation("schedule_config", "cannot be scheduled: %v", err)
	}
	return out, nil
}

// CronSpec renders the schedule as a standard five-field cron expression.
func (s ScheduleConfig) CronSpec() string {
	h, m, err := parseClock(s.Time)
	if err != nil {
		h, m = 0, 0
	}
	switch s.Frequency {
	case FrequencyHourly:
		return fmt.Sprintf("%d * * * *", m)
	case FrequencyWeekly:
		wd := 1
		if s.Weekday != nil {
			wd = *s.Weekday
		}
		return fmt.Sprintf("%d %d * * %d", m, h, wd)
	case FrequencyMonthly:
		dom := s.DayOfMonth
		if dom == 0 {
			dom = 1
		}
		return fmt.Sprintf("%d %d %d * *", m, h, dom)
	default:
		return fmt.Sprintf("%d %d * * *", m, h)
	}
}

func parseClock(v string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%q is not in HH:MM format", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%q has an invalid hour", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%q has an invalid minute", v)
	}
	return h, m, nil
}

func isDispatchFormat(f string) bool {
	for _, known := range DispatchFormats {
		if f == known {
			return true
		}
	}
	return false
}
