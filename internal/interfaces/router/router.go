package router

import (
	"context"
	"fmt"

	"listing-site-generator/internal/application/generation"
	healthsvc "listing-site-generator/internal/application/health"
	lesvc "listing-site-generator/internal/application/listingevents"
	listsvc "listing-site-generator/internal/application/listings"
	"listing-site-generator/internal/application/llm"
	"listing-site-generator/internal/application/prompts"
	"listing-site-generator/internal/application/uploads"
	"listing-site-generator/internal/config"
	"listing-site-generator/internal/infrastructure/cache"
	"listing-site-generator/internal/infrastructure/database"
	healthhandler "listing-site-generator/internal/interfaces/handlers/health"
	listhandler "listing-site-generator/internal/interfaces/handlers/listings"
	"listing-site-generator/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the external collaborators the routes are built on.
type Deps struct {
	DB     *gorm.DB
	Rdb    *redis.Client // optional; enables request stats
	Assets uploads.Store
	Model  llm.Model
	Checks map[string]healthsvc.Checker

	// Context bounds in-flight generations; cancel it on shutdown.
	Context context.Context
}

// CreateApp opens the database, cache, asset store and model client from cfg
// and returns the configured app. Cancelling ctx stops in-flight generations.
func CreateApp(ctx context.Context, cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = cache.Open(cfg.RedisURL); err != nil {
			return nil, nil, nil, fmt.Errorf("redis: %w", err)
		}
	}

	store, err := uploads.NewS3Store(ctx, uploads.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, err
	}

	app, err := New(cfg, Deps{
		DB:     db,
		Rdb:    rdb,
		Assets: store,
		Model:  llm.NewOpenAIModel(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL),
		Checks: map[string]healthsvc.Checker{
			"database": healthsvc.CheckerFunc(sqlDB.PingContext),
			"storage":  store,
		},
		Context: ctx,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return app, db, rdb, nil
}

// New registers middleware and routes on a fresh app.
func New(cfg *config.Config, deps Deps) (*fiber.App, error) {
	bodyLimit := cfg.MaxUploadMB * 1024 * 1024
	if bodyLimit <= 0 {
		bodyLimit = fiber.DefaultBodyLimit
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
		BodyLimit:               bodyLimit,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{AllowOrigins: middleware.ParseOrigins(cfg.CORSAllowOrigins)}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	if deps.Rdb != nil {
		app.Use(middleware.HealthMarker(deps.Rdb))
	}

	hh := &healthhandler.Handlers{
		Rdb:            deps.Rdb,
		Checks:         deps.Checks,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	hg := app.Group("/health")
	hg.Get("/json", hh.JSON)
	hg.Get("/errors", hh.Errors)
	hg.Get("/reset", hh.Reset)

	auth, err := middleware.RequireBearer(cfg.ClerkPublicKey)
	if err != nil {
		return nil, err
	}

	ls := &listsvc.Service{DB: deps.DB, PublicURL: cfg.S3PublicURL}
	lh := &listhandler.Handlers{
		Pipeline: &generation.Pipeline{
			Assets:     deps.Assets,
			Model:      deps.Model,
			Listings:   ls,
			Prompts:    prompts.NewCompiler(),
			TemplateID: prompts.ListingSiteV1,
			MapAPIKey:  cfg.MapAPIKey,
			BaseURL:    cfg.BackendURL,
		},
		Listings:    ls,
		Events:      &lesvc.Service{DB: deps.DB},
		BaseContext: deps.Context,
	}

	lg := app.Group("/listing")
	// preview is public and registered before /:id
	lg.Get("/preview/:id", lh.Preview)
	lg.Post("/create", auth, lh.CreateListing)
	lg.Get("/:id/events", auth, lh.GetListingEvents)
	lg.Get("/:id", auth, lh.GetListing)
	lg.Get("/", auth, lh.GetAllListings)

	return app, nil
}
