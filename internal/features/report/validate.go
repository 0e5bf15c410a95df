package report

import (
	"fmt"
	"strings"
	"time"

	"go-erp/internal/common/errs"
	"go-erp/internal/features/component"

	"github.com/google/uuid"
)

// prepare validates the user-editable part of r and normalizes it in place:
// enum defaults, component ids and positions, permission lists.
func prepare(r *Report) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return errs.Missing("name")
	}
	if r.Category == "" {
		r.Category = CategorySystem
	}
	if !r.Category.Valid() {
		return errs.Validation("category", "unknown category %q", r.Category)
	}
	if r.Type == "" {
		r.Type = ReportTypeSummary
	}
	if !r.Type.Valid() {
		return errs.Validation("type", "unknown report type %q", r.Type)
	}

	r.Components = component.Normalize(r.Components)
	if err := component.ValidateList(r.Components, "components"); err != nil {
		return err
	}

	if r.ScheduleConfig != nil {
		sc, err := r.ScheduleConfig.Normalize()
		if err != nil {
			return err
		}
		r.ScheduleConfig = &sc
	}
	r.Permissions = r.Permissions.Normalize()
	return nil
}

// NewReportNo builds a human readable, practically unique report number.
func NewReportNo(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("RPT-%s-%s", now.UTC().Format("20060102"), suffix)
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (t ReportType) Valid() bool {
	for _, known := range ReportTypes {
		if t == known {
			return true
		}
	}
	return false
}
