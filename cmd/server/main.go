package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/logger"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName), log); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unreachable, rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	catalog := repository.NewCatalogRepo(db)
	ledger := repository.NewLedgerRepo(db)
	tickets := repository.NewTicketRepo(db)
	publisher := queue.NewPublisher(cfg.Broker.URL, cfg.Broker.TicketsIssuedQueue, log)

	reservations := service.NewReservationService(catalog, ledger, publisher, cfg.Engine, log)
	validation := service.NewValidationService(tickets, log)
	payments := service.NewPaymentService(ledger, log)

	consumer := queue.NewPaymentConsumer(cfg.Broker.URL, cfg.Broker.PaymentEventsQueue, payments,
		func(err error) bool { return errors.Is(err, service.ErrNotFound) }, log)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("payment consumer stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLog(log))

	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, repository.NewAccountRepo(db), repository.NewTokenRepo(db), log),
		Purchase:     handler.NewPurchaseHandler(reservations),
		Scan:         handler.NewScanHandler(validation),
		Availability: handler.NewAvailabilityHandler(service.NewAvailabilityService(catalog)),
		Tickets:      handler.NewTicketHandler(service.NewTicketService(tickets, ledger, log), payments),
	}, router.Limiters{
		Purchase: middleware.NewTokenBucket("PURCHASE", config.LoadRateLimitConfig("PURCHASE", 10), rdb, log),
		Scan:     middleware.NewTokenBucket("SCAN", config.LoadRateLimitConfig("SCAN", 120), rdb, log),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
