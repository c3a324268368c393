package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-liveshop/internal/analytics"
	analytics_api "ms-liveshop/internal/analytics/api"
	"ms-liveshop/internal/auth"
	"ms-liveshop/internal/cart"
	"ms-liveshop/internal/cart/cart_api"
	cart_db "ms-liveshop/internal/cart/db"
	rediswrap "ms-liveshop/internal/cart/redis"
	"ms-liveshop/internal/config"
	"ms-liveshop/internal/database/migrations"
	"ms-liveshop/internal/kafka"
	"ms-liveshop/internal/labels"
	"ms-liveshop/internal/ledger"
	ledger_db "ms-liveshop/internal/ledger/db"
	"ms-liveshop/internal/logger"
	"ms-liveshop/internal/payment"
	"ms-liveshop/internal/raffle"
	raffle_db "ms-liveshop/internal/raffle/db"
	"ms-liveshop/internal/raffle/raffle_api"
	"ms-liveshop/internal/sse"
	"ms-liveshop/internal/waitlist"
	waitlist_db "ms-liveshop/internal/waitlist/db"
	"ms-liveshop/internal/waitlist/waitlist_api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	if cfg.Database.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	log.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

// runExpirySweeper drives the stale-cart sweep on a ticker until the context
// ends. The sweep itself is idempotent, so an overlapping manual trigger via
// the API is harmless.
func runExpirySweeper(ctx context.Context, cartService *cart.Service, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("SWEEP", fmt.Sprintf("Expiry sweeper running every %s", interval))
	for {
		select {
		case <-ctx.Done():
			log.Info("SWEEP", "Expiry sweeper stopped")
			return
		case <-ticker.C:
			expired, err := cartService.ExpireStaleCarts(ctx)
			if err != nil {
				log.Error("SWEEP", fmt.Sprintf("Expiry sweep failed: %v", err))
				continue
			}
			if expired > 0 {
				log.Info("SWEEP", fmt.Sprintf("Expired %d stale carts", expired))
			}
		}
	}
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Live Shop Engine initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	defer runner.Close()

	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer kafkaProducer.Close()

	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.AllTopics); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	stockEmitter := sse.NewStockEventEmitter()
	variantLock := rediswrap.NewRedis(redisClient, cfg.Live.VariantLockTTL)

	ledgerService := ledger.NewService(&ledger_db.DB{Bun: bunDB}, log)

	cartService := cart.NewService(
		&cart_db.DB{Bun: bunDB},
		ledgerService,
		variantLock,
		nil, // waitlist checker wired below, after the waitlist service exists
		kafkaProducer,
		stockEmitter,
		log,
	)

	waitlistService := waitlist.NewService(&waitlist_db.DB{Bun: bunDB}, cartService, kafkaProducer, log)
	cartService.Waitlist = waitlistService

	raffleService := raffle.NewService(&raffle_db.DB{Bun: bunDB}, kafkaProducer, log)
	analyticsService := analytics.NewService(bunDB)

	qrGenerator := labels.NewQRGenerator(cfg.Labels.CheckoutBaseURL)
	stripeWebhook := payment.NewWebhook(cartService, cfg.Payment.StripeWebhookSecret, log)

	cartHandler := cart_api.NewHandler(cartService, ledgerService, qrGenerator)
	sseHandler := cart_api.NewSSEHandler(log, stockEmitter)
	waitlistHandler := waitlist_api.NewHandler(waitlistService)
	raffleHandler := raffle_api.NewHandler(raffleService)
	analyticsHandler := analytics_api.NewHandler(analyticsService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	// Customer-facing reads and webhooks; everything backstage is behind OIDC.
	r.Get("/api/live/cart/token/{token}", cartHandler.GetCartByToken)
	r.Get("/api/live/events/{eventID}/stock/stream", sseHandler.HandleStockStream)
	r.Get("/api/live/events/{eventID}/products/{productID}/availability", cartHandler.ProductAvailability)
	r.Get("/api/live/events/{eventID}/products/{productID}/sizes/{size}/availability", cartHandler.VariantAvailability)
	r.Post("/api/live/waitlist", waitlistHandler.Enroll)
	r.Post("/api/live/payment/webhook", stripeWebhook.ServeHTTP)
	log.Info("ROUTER", "Public routes registered under /api/live")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		if cfg.Auth.OIDCIssuer != "" {
			authMiddleware, err := auth.Middleware(cfg.Auth.OIDCIssuer)
			if err != nil {
				log.Fatal("AUTH", fmt.Sprintf("OIDC setup failed: %v", err))
			}
			r.Use(authMiddleware)
			log.Info("AUTH", "OIDC middleware applied to backstage routes")
		} else {
			log.Warn("AUTH", "OIDC_ISSUER not set, backstage routes are UNPROTECTED")
		}

		r.Route("/api/live", func(r chi.Router) {
			r.Route("/cart", func(r chi.Router) {
				r.Post("/quick-add", cartHandler.QuickAdd)
				r.Get("/{cartID}", cartHandler.GetCart)
				r.Patch("/{cartID}/status", cartHandler.SetCartStatus)
				r.Get("/{cartID}/history", cartHandler.StatusHistory)
				r.Post("/{cartID}/bag-label", cartHandler.AssignBagLabel)
				r.Get("/{cartID}/label-qr", cartHandler.LabelQR)
				r.Post("/items/{itemID}/reduce", cartHandler.ReduceItem)
				r.Delete("/items/{itemID}", cartHandler.RemoveItem)
				r.Post("/items/{itemID}/separate", cartHandler.SeparateItem)
			})
			r.Get("/events/{eventID}/carts", cartHandler.ListCarts)
			r.Post("/sweep/expire", cartHandler.RunExpirySweep)
			log.Info("ROUTER", "Cart routes registered under /api/live/cart")

			r.Route("/waitlist", func(r chi.Router) {
				r.Post("/{entryID}/call", waitlistHandler.Call)
				r.Post("/{entryID}/offer", waitlistHandler.Offer)
				r.Post("/{entryID}/skip", waitlistHandler.Skip)
			})
			r.Route("/events/{eventID}/waitlist/{productID}/{size}", func(r chi.Router) {
				r.Get("/", waitlistHandler.ListByVariant)
				r.Get("/next", waitlistHandler.NextEligible)
				r.Post("/end", waitlistHandler.EndQueue)
			})
			log.Info("ROUTER", "Waitlist routes registered under /api/live/waitlist")

			r.Route("/raffle", func(r chi.Router) {
				r.Post("/draw", raffleHandler.Draw)
				r.Post("/{raffleID}/confirm", raffleHandler.Confirm)
				r.Put("/{raffleID}", raffleHandler.Edit)
				r.Delete("/{raffleID}", raffleHandler.Cancel)
			})
			r.Get("/events/{eventID}/raffles", raffleHandler.ListByEvent)
			log.Info("ROUTER", "Raffle routes registered under /api/live/raffle")

			analyticsHandler.RegisterRoutes(r)
			log.Info("ROUTER", "Analytics routes registered under /live/analytics")
		})
	})

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		// No WriteTimeout: the stock SSE stream stays open for the whole live.
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go runExpirySweeper(ctx, cartService, cfg.Live.SweepInterval, log)

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Live Shop Engine running on %s", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Live Shop Engine shutdown complete")
	}
}
