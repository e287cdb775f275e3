package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/seatwatch/internal/config"
	"github.com/iliyamo/seatwatch/internal/database"
	"github.com/iliyamo/seatwatch/internal/detect"
	"github.com/iliyamo/seatwatch/internal/floorconfig"
	"github.com/iliyamo/seatwatch/internal/handler"
	"github.com/iliyamo/seatwatch/internal/log"
	"github.com/iliyamo/seatwatch/internal/middleware"
	"github.com/iliyamo/seatwatch/internal/occupancy"
	"github.com/iliyamo/seatwatch/internal/queue"
	"github.com/iliyamo/seatwatch/internal/repository"
	"github.com/iliyamo/seatwatch/internal/rollover"
	"github.com/iliyamo/seatwatch/internal/router"
	"github.com/iliyamo/seatwatch/internal/scheduler"
	queue_publisher "github.com/iliyamo/seatwatch/internal/service"
	"github.com/iliyamo/seatwatch/internal/session"
	"github.com/iliyamo/seatwatch/internal/video"
	"github.com/iliyamo/seatwatch/internal/vision"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.L().Fatal().Err(err).Msg("config")
	}
	log.Init(cfg.LogLevel, cfg.Env)
	lg := log.With("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		lg.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db, cfg.DBDriver); err != nil {
		lg.Fatal().Err(err).Msg("ensure schema")
	}

	users := repository.NewUserRepo(db)
	seats := repository.NewSeatRepo(db)
	markers := repository.NewRolloverRepo(db)

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if _, err := users.UpsertAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword, cfg.BcryptCost); err != nil {
			lg.Fatal().Err(err).Msg("bootstrap admin")
		}
		lg.Info().Str("username", cfg.AdminUsername).Msg("admin account ready")
	}

	yolo, err := vision.NewYOLO(vision.YOLOConfig{
		ModelPath:     cfg.Model.Path,
		InputSize:     cfg.Model.InputSize,
		ConfThreshold: cfg.Model.ConfThreshold,
		NMSThreshold:  cfg.Model.NMSThreshold,
	})
	if err != nil {
		lg.Fatal().Err(err).Str("model", cfg.Model.Path).Msg("load detector")
	}
	defer yolo.Close()

	cursors := video.NewRegistry(vision.OpenCapture, log.With("video"))
	defer cursors.Close()

	publisher := queue_publisher.NewPublisher(cfg.RabbitURL, log.With("publisher"))
	var exporter rollover.Exporter = rollover.LogExporter{Dir: cfg.UsageLogDir, Log: log.With("usage-log")}
	engineOpts := []occupancy.Option{}
	if cfg.RolloverExport == config.ExportQueue {
		exporter = publisher
		engineOpts = append(engineOpts, occupancy.WithNotifier(publisher))
		go func() {
			err := queue.StartUsageConsumer(ctx, cfg.RabbitURL, cfg.UsageLogDir, log.With("usage-consumer"))
			if err != nil && !errors.Is(err, context.Canceled) {
				lg.Error().Err(err).Msg("usage consumer stopped")
			}
		}()
	}

	accountant := rollover.NewAccountant(db, seats, markers, exporter, cfg.Location, log.With("rollover"))
	engineOpts = append(engineOpts, occupancy.WithRollovers(accountant))

	labels := detect.NewLabels(cfg.Model.PersonLabel, cfg.Model.ObjectLabels)
	agg := occupancy.NewAggregator(cursors, yolo, labels, cfg.RefreshInterval, log.With("aggregator"))
	engine := occupancy.NewEngine(db, seats, agg, log.With("engine"), engineOpts...)

	floors := floorconfig.NewLoader(cfg.FloorsDir, cfg.StreamRoot)
	sched := scheduler.New(floors, engine, accountant, scheduler.Options{
		RefreshInterval: cfg.RefreshInterval,
		Workers:         cfg.SchedulerWorkers,
		Location:        cfg.Location,
	}, log.With("scheduler"))
	defer sched.Stop()
	gate := session.NewGate(sched, log.With("session"))

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	} else {
		lg.Warn().Msg("redis unavailable; cache and rate limit disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.Register(e, router.Handlers{
		Auth:      handler.NewAuthHandler(cfg, users, gate, log.With("auth")),
		Seats:     handler.NewSeatHandler(seats, floors, engine, log.With("seats")),
		Admin:     handler.NewAdminHandler(seats, log.With("admin")),
		JWTSecret: cfg.JWTSecret,
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	})

	go func() {
		addr := ":" + cfg.Port
		lg.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("shutdown")
	}
}

func openDB(cfg config.Config) (*sql.DB, error) {
	if cfg.DBDriver == database.DriverSQLite {
		return database.OpenSQLite(cfg.DBPath)
	}
	return database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}
