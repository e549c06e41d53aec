package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/torqueshop/torqueshop/internal/app"
	"github.com/torqueshop/torqueshop/internal/auth"
	"github.com/torqueshop/torqueshop/internal/customer"
	"github.com/torqueshop/torqueshop/internal/inventory"
	"github.com/torqueshop/torqueshop/internal/invoice"
	"github.com/torqueshop/torqueshop/internal/mechanic"
	"github.com/torqueshop/torqueshop/internal/platform/cache"
	"github.com/torqueshop/torqueshop/internal/platform/db"
	"github.com/torqueshop/torqueshop/internal/shared"
	"github.com/torqueshop/torqueshop/internal/ticket"
	"github.com/torqueshop/torqueshop/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, responses will not be cached", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()
	respCache := cache.NewResponseCache(redisClient, cfg.CacheTTL, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	codec, err := auth.NewCodec(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("init token codec", slog.Any("error", err))
		os.Exit(1)
	}
	guard := auth.NewGuard(codec, cfg.CookieName, logger)

	auditLogger := shared.NewAuditLogger(pool)

	customerRepo := customer.NewRepository(pool)
	customerService := customer.NewService(customerRepo, codec, auditLogger)
	customerHandler := customer.NewHandler(logger, customerService, guard, respCache)

	mechanicRepo := mechanic.NewRepository(pool)
	mechanicService := mechanic.NewService(mechanicRepo, codec, auditLogger)
	mechanicHandler := mechanic.NewHandler(logger, mechanicService, guard, respCache)

	ticketRepo := ticket.NewRepository(pool)
	ticketService := ticket.NewService(ticketRepo, auditLogger)
	ticketHandler := ticket.NewHandler(logger, ticketService, guard, respCache)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, guard, respCache)

	invoiceRepo := invoice.NewRepository(pool)
	invoiceService := invoice.NewService(invoiceRepo, auditLogger)
	invoiceHandler := invoice.NewHandler(logger, invoiceService, guard, respCache, jobClient)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CustomerHandler:  customerHandler,
		MechanicHandler:  mechanicHandler,
		TicketHandler:    ticketHandler,
		InventoryHandler: inventoryHandler,
		InvoiceHandler:   invoiceHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
