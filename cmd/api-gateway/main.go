// RoadReady API gateway: lesson scheduling, vehicle allocation and student
// progress tracking for a driving school.
//
// @title RoadReady Scheduling API
// @version 1.0
// @description Driving school lesson scheduling, vehicle allocation and student progress tracking.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/roadready/driveschool-api/internal/handler"
	"github.com/roadready/driveschool-api/internal/repository"
	"github.com/roadready/driveschool-api/internal/service"
	"github.com/roadready/driveschool-api/pkg/cache"
	"github.com/roadready/driveschool-api/pkg/config"
	"github.com/roadready/driveschool-api/pkg/database"
	"github.com/roadready/driveschool-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer func() { _ = db.Close() }()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(registry)

	validate := validator.New()

	lessonRepo := repository.NewLessonRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifications := service.NewNotificationService(notificationRepo, cfg.Notify, log)
	notifications.Start(ctx)
	defer notifications.Stop()

	conflicts := service.NewConflictChecker(lessonRepo, log)
	allocator := service.NewVehicleAllocator(vehicleRepo, metrics, log)
	engine := service.NewSchedulingEngine(
		lessonRepo, userRepo, vehicleRepo,
		conflicts, allocator, notifications, metrics,
		validate, log,
	)
	timetable := service.NewTimetableGenerator(lessonRepo, userRepo, notifications, cfg.Timetable, log)
	scoreCache := service.NewRedisCache(redisClient, log)
	progress := service.NewProgressService(
		progressRepo, lessonRepo,
		scoreCache, cfg.Progress.CacheTTL,
		notifications, validate, log,
	)
	vehicles := service.NewVehicleService(vehicleRepo, validate, log)

	reminders := service.NewReminderService(lessonRepo, notifications, cfg.Reminders, log)
	if err := reminders.Start(ctx); err != nil {
		return fmt.Errorf("start reminders: %w", err)
	}
	defer reminders.Stop()

	router := handler.NewRouter(cfg, db, registry, handler.Handlers{
		Bookings:      handler.NewBookingHandler(engine),
		Vehicles:      handler.NewVehicleHandler(vehicles),
		Timetable:     handler.NewTimetableHandler(timetable, metrics),
		Progress:      handler.NewProgressHandler(progress),
		Notifications: handler.NewNotificationHandler(notifications),
	}, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.Int("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
