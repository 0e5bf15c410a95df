package system

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"go-erp/internal/common/errs"
	"go-erp/internal/config"
	"go-erp/internal/features/access"
	"go-erp/internal/features/report"
	"go-erp/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReports struct {
	report.ReportService
	gate    *access.Gate
	reports map[string]*report.Report
}

func (s *stubReports) Authorize(ctx context.Context, id access.Identity, reportID string, action access.Action) (*report.Report, error) {
	rep, ok := s.reports[reportID]
	if !ok {
		return nil, errs.NotFound("report", reportID)
	}
	if err := rep.Authorize(s.gate, id, action); err != nil {
		return nil, err
	}
	return rep, nil
}

func TestReportAccess(t *testing.T) {
	gate := access.NewGate("admin")
	reports := &stubReports{gate: gate, reports: map[string]*report.Report{
		"r1": {
			TenantID:    "t1",
			CreatedBy:   "owner",
			Permissions: access.PermissionSet{ViewUsers: []string{"viewer"}, EditUsers: []string{"editor"}},
		},
	}}
	cfg := &config.Config{AdminRole: "admin"}
	app := fiber.New()
	NewDebugApi(NewDebugController(gate, reports), cfg).Setup(app)

	tests := []struct {
		name    string
		user    string
		roles   []string
		path    string
		status  int
		actions map[string]bool
	}{
		{"Owner", "owner", nil, "/api/debug/reports/r1/access", fiber.StatusOK, map[string]bool{
			"view": true, "edit": true, "trigger": true, "export": true, "delete": true, "share": true,
		}},
		{"Viewer", "viewer", nil, "/api/debug/reports/r1/access", fiber.StatusOK, map[string]bool{
			"view": true, "edit": false, "trigger": false, "export": true, "delete": false, "share": false,
		}},
		{"Editor", "editor", nil, "/api/debug/reports/r1/access", fiber.StatusOK, map[string]bool{
			"view": true, "edit": true, "trigger": true, "export": true, "delete": false, "share": false,
		}},
		{"Admin", "root", []string{"admin"}, "/api/debug/reports/r1/access", fiber.StatusOK, map[string]bool{
			"view": true, "edit": true, "trigger": true, "export": true, "delete": true, "share": true,
		}},
		{"Stranger", "stranger", nil, "/api/debug/reports/r1/access", fiber.StatusForbidden, nil},
		{"Missing Report", "owner", nil, "/api/debug/reports/nope/access", fiber.StatusNotFound, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := utils.GenerateToken(tt.user, "t1", tt.roles)
			require.NoError(t, err)
			req := httptest.NewRequest("GET", tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.actions == nil {
				return
			}

			var body struct {
				Owner   string          `json:"owner"`
				Actions map[string]bool `json:"actions"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "owner", body.Owner)
			assert.Equal(t, tt.actions, body.Actions)
		})
	}
}

func TestSwaggerApi_HiddenInProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		status      int
	}{
		{"Development", "development", fiber.StatusOK},
		{"Production", "production", fiber.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			NewSwaggerApi(&config.Config{Environment: tt.environment}).Setup(app)

			resp, err := app.Test(httptest.NewRequest("GET", "/swagger/index.html", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
