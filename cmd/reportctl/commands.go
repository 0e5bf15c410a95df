package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go-erp/internal/config"
	"go-erp/internal/connectors"
	"go-erp/internal/database"
	"go-erp/internal/features/access"
	"go-erp/internal/features/audit"
	"go-erp/internal/features/email"
	"go-erp/internal/features/execution"
	"go-erp/internal/features/export"
	"go-erp/internal/features/report"
	"go-erp/internal/features/schedule"
	"go-erp/internal/features/template"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runtime is the service graph the commands share. It mirrors the API
// wiring without the HTTP layer.
type runtime struct {
	cfg        *config.Config
	db         *database.MongodbDB
	logger     *zap.Logger
	gate       *access.Gate
	registry   *connectors.Registry
	reports    report.ReportService
	executions execution.ExecutionService
	templates  template.TemplateService
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	gate := access.NewGate(cfg.AdminRole)
	auditService := audit.NewAuditService(audit.NewAuditRepository(db), logger)
	reports := report.NewReportService(report.NewReportRepository(db), auditService, gate, logger)
	registry := connectors.NewDefaultRegistry(cfg, db, connectors.NewDataSourceStore(db), logger)
	executions := execution.NewExecutionService(
		execution.NewExecutionRepository(db),
		reports,
		execution.NewConnectorSource(registry),
		execution.NewEventHub(logger),
		gate, cfg, logger,
	)
	templates := template.NewTemplateService(template.NewTemplateRepository(db), reports, auditService, gate, logger)

	return &runtime{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		gate:       gate,
		registry:   registry,
		reports:    reports,
		executions: executions,
		templates:  templates,
	}, nil
}

// operator is the identity CLI actions run as.
func (r *runtime) operator() access.Identity {
	return access.Identity{UserID: access.SystemUserID, Roles: []string{r.cfg.AdminRole}}
}

func (r *runtime) close(ctx context.Context) {
	if err := r.executions.Shutdown(ctx); err != nil {
		r.logger.Warn("Executions still running at exit", zap.Error(err))
	}
	_ = r.registry.Close(ctx)
	_ = r.db.Client.Disconnect(ctx)
	_ = r.logger.Sync()
}

func withRuntime(timeout time.Duration, fn func(ctx context.Context, rt *runtime) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close(ctx)
	return fn(ctx, rt)
}

func newSeedTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-templates",
		Short: "Upsert the built-in report templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(time.Minute, func(ctx context.Context, rt *runtime) error {
				if err := rt.templates.EnsureIndexes(ctx); err != nil {
					return err
				}
				n, err := rt.templates.SeedSystemTemplates(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Seeded %d system templates\n", n)
				return nil
			})
		},
	}
}

func newTickCommand() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run every scheduled report due in the minute ending now",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = parsed
			}
			return withRuntime(15*time.Minute, func(ctx context.Context, rt *runtime) error {
				mailer := email.NewEmailService(rt.cfg, email.NewEmailRepository(rt.db), rt.logger)
				scheduler := schedule.NewSchedulerService(rt.reports, rt.executions, mailer, rt.cfg, rt.logger)
				summary, err := scheduler.RunTick(ctx, now)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Evaluate the tick at this RFC3339 time instead of now")
	return cmd
}

func newExportCommand() *cobra.Command {
	var (
		format string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export <execution-id>",
		Short: "Export a completed execution to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(time.Minute, func(ctx context.Context, rt *runtime) error {
				svc := export.NewExportService(rt.executions, rt.logger)
				file, err := svc.Export(ctx, rt.operator(), args[0], format)
				if err != nil {
					return err
				}
				path := filepath.Join(outDir, file.Name)
				if err := os.WriteFile(path, file.Data, 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s (%d bytes)\n", path, len(file.Data))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "pdf", "Export format: pdf, excel, csv or json")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	return cmd
}
