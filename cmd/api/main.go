package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/creator_market/configs"
	"github.com/anjiri1684/creator_market/database"
	"github.com/anjiri1684/creator_market/handlers"
	"github.com/anjiri1684/creator_market/jobs"
	"github.com/anjiri1684/creator_market/notifications"
	"github.com/anjiri1684/creator_market/payments"
	"github.com/anjiri1684/creator_market/routes"
	"github.com/anjiri1684/creator_market/services"
	"github.com/anjiri1684/creator_market/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("🔥 Invalid configuration: %v", err)
	}

	zlog, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("🔥 Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Settings) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg *config.Settings, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(cfg.DatabaseURL, zlog)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, zlog); err != nil {
		return err
	}
	if err := database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminFullName, zlog); err != nil {
		return err
	}
	store := database.NewGormStore(db)

	locker, closeLocker, err := newLocker(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer closeLocker()

	verifier := payments.NewWebhookVerifier(cfg.WebhookSecret, cfg.WebhookTolerance)
	processor := payments.NewStripeClient(cfg.ProcessorBaseURL, cfg.ProcessorSecretKey, verifier, cfg.ExternalTimeout, zlog)
	defer func() { _ = processor.Close() }()

	hub := websocket.NewHub(zlog)
	go hub.Run(ctx)

	mailer := notifications.NewMailer("", cfg.BrevoAPIKey, cfg.EmailSender, cfg.EmailSenderName, cfg.ExternalTimeout, zlog)
	defer func() { _ = mailer.Close() }()
	dispatcher := notifications.NewDispatcher(mailer, hub, store, cfg.ExternalTimeout, zlog)

	schedule := services.PayoutSchedule{
		MinFreeAmount: cfg.PayoutMinFreeAmount,
		FlatFee:       cfg.PayoutFlatFee,
		PercentFee:    cfg.PayoutPercentFee,
		Minimum:       cfg.PayoutMinimum,
	}
	payouts := services.NewPayoutManager(store, locker, processor, schedule, cfg.Currency, cfg.ExternalTimeout, dispatcher, zlog)
	levels := services.NewLevelTracker(store, zlog)
	reconciler := services.NewReconciler(store, processor, locker, levels, payouts, dispatcher, zlog)
	builder := services.NewCheckoutBuilder(store, cfg.Currency, services.CheckoutURLs{Success: cfg.CheckoutSuccessURL, Cancel: cfg.CheckoutCancelURL})
	checkout := services.NewCheckoutService(store, builder, processor, cfg.ExternalTimeout, zlog)
	promoters := services.NewPromoterService(store, zlog)

	scheduler, err := jobs.NewScheduler(cfg.DisbursementSpec, payouts, 5*time.Minute, zlog)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()
	zlog.Info("disbursement job scheduled", zap.String("spec", cfg.DisbursementSpec))

	h := handlers.New(store, checkout, reconciler, payouts, promoters, zlog)
	app := newApp(zlog)
	routes.PublicRoutes(app, h)
	routes.PaymentRoutes(app, h, cfg.JWTSecret)
	routes.SellerRoutes(app, h, cfg.JWTSecret)
	routes.AdminRoutes(app, h, cfg.JWTSecret)
	routes.WebsocketRoutes(app, hub, cfg.JWTSecret)

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("port", cfg.Port))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		return err
	}
	return nil
}

func newLocker(ctx context.Context, cfg *config.Settings, zlog *zap.Logger) (services.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		zlog.Warn("REDIS_ADDR not set, using in-process locks; run a single replica")
		return services.NewKeyedMutex(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     50,
		MinIdleConns: 5,
		PoolTimeout:  4 * time.Second,
		MaxRetries:   3,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Join(errors.New("redis ping failed"), err)
	}
	zlog.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	return services.NewRedisLocker(client, 30*time.Second, zlog), func() { _ = client.Close() }, nil
}

func newApp(zlog *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:       "Creator Market",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			zlog.Error("request error", zap.Error(err), zap.String("path", c.Path()), zap.String("method", c.Method()))
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Stripe-Signature, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: "Content-Length",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	return app
}
