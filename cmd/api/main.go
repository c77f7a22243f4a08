package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/database"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/router"
	"github.com/noah-isme/gema-lms-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level := zerolog.InfoLevel
	if cfg.AppEnv == "development" {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, grade events will use redis only")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	scale := service.NewGradeScale(cfg.GradingFloorLetter)

	repos := service.GradebookRepositories{
		Classes:     repository.NewClassRepository(db),
		Students:    repository.NewStudentRepository(db),
		Categories:  repository.NewCategoryRepository(db),
		Assignments: repository.NewAssignmentRepository(db),
		Submissions: repository.NewSubmissionRepository(db),
		Enrollments: repository.NewEnrollmentRepository(db),
		Gradebook:   repository.NewGradebookRepository(db),
		Transactor:  repository.NewTransactor(db),
	}

	gpaService := service.NewGPAService(repos.Students, repos.Enrollments, scale, redisClient, cfg.GPACacheTTL, logger)
	publisher := service.NewGradeEventPublisher(redisClient, natsConn, cfg.EventsChannel, logger)
	events := service.NewGradeEventStream(publisher, redisClient, natsConn, cfg.EventsChannel, logger)

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	events.Start(streamCtx)
	aggregator := service.NewGradeAggregator(repos.Classes, repos.Students, repos.Gradebook, scale, logger)
	recalculator := service.NewGradeRecalculator(aggregator, repos.Classes, repos.Enrollments, repos.Transactor, service.NewClassLocker(), gpaService, events, logger)
	gradebookService := service.NewGradebookService(repos, aggregator, recalculator, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		GradebookHandler: handler.NewGradebookHandler(gradebookService, logger),
		GradeHandler:     handler.NewGradeHandler(recalculator, gpaService, logger),
		StreamHandler:    handler.NewGradeStreamHandler(events, logger),
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
