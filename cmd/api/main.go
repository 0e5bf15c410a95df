package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "go-erp/internal/common/api"
	"go-erp/internal/config"
	"go-erp/internal/connectors"
	"go-erp/internal/database"
	"go-erp/internal/features/access"
	"go-erp/internal/features/audit"
	"go-erp/internal/features/designer"
	"go-erp/internal/features/email"
	"go-erp/internal/features/execution"
	"go-erp/internal/features/export"
	"go-erp/internal/features/report"
	"go-erp/internal/features/schedule"
	"go-erp/internal/features/system"
	"go-erp/internal/features/template"
	"go-erp/internal/logger"
	"go-erp/internal/middleware"

	_ "go-erp/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for i, route := range routes {
		log.Printf("Setting up route %d: %T\n", i+1, route)
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// NewGate builds the permission gate from the configured admin role.
func NewGate(cfg *config.Config) *access.Gate {
	return access.NewGate(cfg.AdminRole)
}

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// InitializeIndexes ensures indexes and the system template catalog in the
// background so a slow database does not block startup.
func InitializeIndexes(
	lc fx.Lifecycle,
	reports report.ReportService,
	executions execution.ExecutionService,
	templates template.TemplateService,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := reports.EnsureIndexes(ctx); err != nil {
					logger.Error("Failed to ensure report indexes", zap.Error(err))
				}
				if err := executions.EnsureIndexes(ctx); err != nil {
					logger.Error("Failed to ensure execution indexes", zap.Error(err))
				}
				if err := templates.EnsureIndexes(ctx); err != nil {
					logger.Error("Failed to ensure template indexes", zap.Error(err))
				}
				n, err := templates.SeedSystemTemplates(ctx)
				if err != nil {
					logger.Error("Failed to seed system templates", zap.Error(err))
					return
				}
				logger.Info("System templates seeded", zap.Int("count", n))
			}()
			return nil
		},
	})
}

// ManageWorkers starts the scheduler and drains running executions and
// external connections on shutdown.
func ManageWorkers(
	lc fx.Lifecycle,
	scheduler schedule.SchedulerService,
	executions execution.ExecutionService,
	registry *connectors.Registry,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			if err := scheduler.Stop(ctx); err != nil {
				return err
			}
			if err := executions.Shutdown(ctx); err != nil {
				return err
			}
			return registry.Close(ctx)
		},
	})
}

// @title           ERP Reporting API
// @version         1.0
// @description     Report definitions, executions, exports, templates and schedules.

// @host            localhost:8080
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Database
			database.NewDatabase,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			NewGate,

			// Data sources
			connectors.NewDataSourceStore,
			connectors.NewDefaultRegistry,
			execution.NewConnectorSource,
			execution.NewEventHub,

			// Initialize Repository
			audit.NewAuditRepository,
			report.NewReportRepository,
			execution.NewExecutionRepository,
			template.NewTemplateRepository,
			email.NewEmailRepository,

			// Initialize Service
			audit.NewAuditService,
			report.NewReportService,
			execution.NewExecutionService,
			export.NewExportService,
			template.NewTemplateService,
			email.NewEmailService,
			schedule.NewSchedulerService,

			// Initialize Controller
			audit.NewAuditController,
			system.NewDebugController,
			report.NewReportController,
			designer.NewDesignerController,
			execution.NewExecutionController,
			export.NewExportController,
			template.NewTemplateController,
			schedule.NewSchedulerController,

			// Initialize API Routes
			AsRoute(audit.NewAuditApi),
			AsRoute(system.NewDebugApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
			AsRoute(report.NewReportApi),
			AsRoute(designer.NewDesignerApi),
			AsRoute(execution.NewExecutionApi),
			AsRoute(export.NewExportApi),
			AsRoute(template.NewTemplateApi),
			AsRoute(schedule.NewSchedulerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			ManageWorkers,
			InitializeIndexes,
		),
	)

	app.Run()
}
