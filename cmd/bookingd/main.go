package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/catalog"
	"github.com/example/campus-booking/internal/config"
	"github.com/example/campus-booking/internal/events"
	httptransport "github.com/example/campus-booking/internal/http"
	"github.com/example/campus-booking/internal/ledger"
	"github.com/example/campus-booking/internal/persistence/sqlite"
	"github.com/example/campus-booking/internal/recurrence"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	resourceRepo := sqlite.NewResourceRepository(pool)
	bookingRepo := sqlite.NewBookingRepository(pool)
	accountRepo := sqlite.NewAccountRepository(pool)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("failed to connect to message broker", "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := amqpPublisher.Close(); cerr != nil {
				logger.Error("failed to close message broker connection", "error", cerr)
			}
		}()
		publisher = amqpPublisher
	}

	var cache application.SlotCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("failed to reach redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := client.Close(); cerr != nil {
				logger.Error("failed to close redis client", "error", cerr)
			}
		}()
		cache = application.NewRedisSlotCache(client, cfg.CacheTTL)
	}

	registry := catalog.NewRegistry(resourceRepo)
	bookingLedger := ledger.New(ledger.Config{
		Bookings:           bookingRepo,
		CancellationCutoff: cfg.CancellationCutoff,
		IDGenerator:        idGenerator,
		Now:                now,
		Logger:             logger,
	})

	scheduler := application.NewSchedulerService(application.SchedulerConfig{
		Registry:  registry,
		Owners:    accountRepo,
		Ledger:    bookingLedger,
		Expander:  recurrence.NewExpander(cfg.Timezone),
		Publisher: publisher,
		Cache:     cache,
		Horizon:   cfg.BookingHorizon,
		Now:       now,
		Logger:    logger,
	})
	resourceService := application.NewResourceService(resourceRepo, idGenerator, now, logger)
	accountService := application.NewAccountService(accountRepo, nil, idGenerator, now, logger)
	authService := application.NewAuthService(accountRepo, nil, cfg.TokenSecret, cfg.TokenTTL, now, logger)

	// The availability projection must reflect every committed booking before
	// the engine accepts traffic.
	if err := scheduler.Rebuild(ctx); err != nil {
		logger.Error("failed to rebuild availability index", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:      authService,
		Scheduler: scheduler,
		Resources: resourceService,
		Accounts:  accountService,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
