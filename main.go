package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"invoice-dashboard-backend/config"
	"invoice-dashboard-backend/controllers"
	"invoice-dashboard-backend/database"
	"invoice-dashboard-backend/middlewares"
	"invoice-dashboard-backend/repositories"
	"invoice-dashboard-backend/routes"
	"invoice-dashboard-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	cfg := config.Load()
	ctx := context.Background()

	// ---- Relational backend (missing config is reported per request, not fatal)
	db, err := database.Connect(cfg)
	if err != nil {
		slog.Warn("relational backend unavailable at start-up", "error", err)
	} else if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
	}
	defer database.Close(db)

	// ---- Key-value + object storage
	var (
		dynamo    repositories.DynamoAPI
		presigner services.Presigner
	)
	if clients, err := database.ConnectAWS(ctx, cfg.AWSRegion); err != nil {
		slog.Warn("aws clients unavailable", "error", err)
	} else {
		dynamo, presigner = clients.DynamoDB, clients.Presigner
	}

	relational := repositories.NewRelationalStore(db, cfg.DBQueryTimeout, cfg.ApprovedPageSize)
	keyValue := repositories.NewKeyValueStore(dynamo, repositories.KeyValueConfig{
		Table:        cfg.InvoicesTable,
		PartitionKey: cfg.InvoicesTablePK,
		SortKey:      cfg.InvoicesTableSK,
		DefaultLimit: cfg.KVDefaultLimit,
		MaxLimit:     cfg.KVMaxLimit,
	})
	previews := services.NewPreviewIssuer(keyValue, presigner, services.PreviewConfig{
		InvoiceTTL:       cfg.PreviewURLTTL,
		LocatorTTL:       cfg.RawPreviewURLTTL,
		DefaultBucket:    cfg.DefaultBucket,
		AllowCrossTenant: cfg.AllowCrossTenantPreview,
	})
	if cfg.AllowCrossTenantPreview {
		slog.Warn("PREVIEW_ALLOW_CROSS_TENANT is set: storage tenant prefix checks are bypassed")
	}

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler(cfg.DevMode),
		BodyLimit:    cfg.BodyLimitBytes,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))

	// ---- CORS (the auth cookie requires credentials, which cannot be combined with "*")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: cfg.AllowedOrigins != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	// ---- Global rate limiter, shared across instances when redis is available
	limiterCfg := limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
	}
	if rdb := database.ConnectRedis(ctx, cfg.RedisAddr); rdb != nil {
		storage := database.NewRedisStorage(rdb, "ratelimit:")
		defer storage.Close()
		limiterCfg.Storage = storage
	}
	app.Use(limiter.New(limiterCfg))

	var idempotency middlewares.IdempotencyStore
	if db != nil {
		idempotency = repositories.NewIdempotencyRepository(db)
	}

	// ---- Routes
	routes.Register(app, routes.Deps{
		Invoices: controllers.NewInvoiceController(
			services.NewInvoiceService(relational, keyValue),
			services.NewApprover(relational),
			previews,
		),
		Files:       controllers.NewFileController(previews),
		Resolver:    middlewares.NewTenantResolver(cfg.TenantClaim, cfg.JWTSecret),
		CookieName:  cfg.AuthCookieName,
		Idempotency: idempotency,
	})

	// ---- Start, then drain on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		slog.Info("shutting down")
		_ = app.Shutdown()
	}()

	slog.Info("API server starting", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server stopped", "error", err)
	}
}
