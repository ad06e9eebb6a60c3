package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ulugbekov/savdo-backend/api/routes"
	"github.com/ulugbekov/savdo-backend/internal/auth"
	cartsvc "github.com/ulugbekov/savdo-backend/internal/cart"
	checkoutsvc "github.com/ulugbekov/savdo-backend/internal/checkout"
	orderssvc "github.com/ulugbekov/savdo-backend/internal/orders"
	productssvc "github.com/ulugbekov/savdo-backend/internal/products"
	reviewssvc "github.com/ulugbekov/savdo-backend/internal/reviews"
	"github.com/ulugbekov/savdo-backend/internal/users"
	"github.com/ulugbekov/savdo-backend/internal/verification"
	"github.com/ulugbekov/savdo-backend/pkg/auth/session"
	"github.com/ulugbekov/savdo-backend/pkg/config"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
	"github.com/ulugbekov/savdo-backend/pkg/migrate"
	"github.com/ulugbekov/savdo-backend/pkg/outbox"
	"github.com/ulugbekov/savdo-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	productsRepo := productssvc.NewRepository(dbClient.DB())
	reviewsRepo := reviewssvc.NewRepository(dbClient.DB())
	cartRepo := cartsvc.NewRepository(dbClient.DB())
	ordersRepo := orderssvc.NewRepository(dbClient.DB())
	codesRepo := verification.NewRepository(dbClient.DB())
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	verificationService := verification.NewService(dbClient, codesRepo, usersRepo, events, cfg, logg)
	authService := auth.NewService(usersRepo, sessionManager, cfg.JWT, logg)
	productsService := productssvc.NewService(productsRepo, logg)
	reviewsService := reviewssvc.NewService(reviewsRepo, productsRepo, logg)
	cartService := cartsvc.NewService(dbClient, cartRepo, productsRepo, logg)
	ordersService := orderssvc.NewService(ordersRepo, logg)

	checkoutService, err := checkoutsvc.NewService(dbClient, cartRepo, ordersRepo, usersRepo, events, cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		SessionChecker: sessionManager,
		Verification:   verificationService,
		Auth:           authService,
		Users:          usersRepo,
		Products:       productsService,
		Reviews:        reviewsService,
		Cart:           cartService,
		Orders:         ordersService,
		Checkout:       checkoutService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		graceCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "error during shutdown", err)
		}
	}

	logg.Info(ctx, "api server stopped")
}
