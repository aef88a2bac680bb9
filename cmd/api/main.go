package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/servicedesk/internal/api/http"
	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/cache"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/persistence"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
	"github.com/spec-kit/servicedesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	staffRepo := repository.NewStaffRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	hoursRepo := repository.NewBusinessHourRepository(pool)
	holidayRepo := repository.NewHolidayRepository(pool)
	ruleRepo := repository.NewSLARuleRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	slaService := service.NewSLAService(cfg.Calendar, service.SLADependencies{
		BusinessHourRepo: hoursRepo,
		HolidayRepo:      holidayRepo,
		SLARuleRepo:      ruleRepo,
		Cache:            cache.NewCalendarCache(redis.Cmdable(), cfg.Calendar.CacheTTL()),
		Logger:           logger,
		Metrics:          metrics,
	})
	slaService.RegisterHandlers(dispatcher)

	calendarAdmin := service.NewCalendarAdminService(service.CalendarAdminDependencies{
		BusinessHourRepo: hoursRepo,
		HolidayRepo:      holidayRepo,
		SLARuleRepo:      ruleRepo,
		Location:         cfg.Calendar.Location,
		Dispatcher:       dispatcher,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		SLA:        slaService,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	reportService := service.NewReportService(ticketRepo, ruleRepo, slaService, nil)
	authService := service.NewAuthService(cfg.Auth, staffRepo)

	if created, err := authService.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminName, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPass); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	} else if created {
		logger.Info("bootstrap admin created", zap.String("email", cfg.Auth.BootstrapAdminEmail))
	}

	monitorDone := worker.Start(ctx,
		service.NewNotificationService(dispatcher, logger, cfg.Notification),
		worker.NewBreachMonitor(ticketService, cfg.SLA.BreachScanInterval(), logger, metrics))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		StaffTickets:   handlers.NewStaffTicketsHandler(ticketService),
		Calendar:       handlers.NewCalendarHandler(slaService, calendarAdmin, nil),
		Reports:        handlers.NewReportsHandler(reportService, cfg.Calendar.Location, logger, nil),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), staffRepo).Handle,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("servicedesk started",
		zap.String("addr", cfg.App.Addr()),
		zap.String("timezone", cfg.Calendar.TimezoneName))

	waitForShutdown(logger)

	cancel()
	<-monitorDone
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
