// Package app wires configuration, storage, services and the HTTP router.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "cookbook/docs"
	"cookbook/internal/authz"
	"cookbook/internal/cache"
	"cookbook/internal/config"
	"cookbook/internal/handlers"
	"cookbook/internal/imageproc"
	"cookbook/internal/logging"
	"cookbook/internal/metrics"
	"cookbook/internal/middleware"
	"cookbook/internal/migrations"
	"cookbook/internal/pdf"
	"cookbook/internal/repositories"
	"cookbook/internal/routes"
	"cookbook/internal/services"
	"cookbook/internal/storage"
	"cookbook/internal/validation"
	"cookbook/internal/worker"
)

type App struct {
	cfg     *config.Config
	log     logging.Logger
	db      *sql.DB
	router  *gin.Engine
	pool    *worker.Pool
	janitor *services.TempJanitor
	memory  *cache.MemoryStore // nil при Redis
	closers []func() error
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Migrate применяет встроенные миграции goose.
func Migrate(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	db, err := openDB(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrations.Up(ctx, db); err != nil {
		return err
	}
	log.Info(ctx, "[app][migrate] done")
	return nil
}

func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) (cache.Store, error) {
	if a.cfg.Redis.Addr == "" {
		a.log.Warn(ctx, "[app][cache] redis.addr is empty, using in-memory store (single instance only)")
		a.memory = cache.NewMemoryStore(nil)
		return a.memory, nil
	}
	client, err := cache.DialRedis(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return cache.NewRedisStore(client, "cookbook:"), nil
}

func (a *App) openFiles(ctx context.Context) (storage.Storage, error) {
	if a.cfg.Files.Driver == "s3" {
		return storage.NewS3Storage(ctx, a.cfg.Files)
	}
	return storage.NewLocalStorage(a.cfg.Files.RootDir)
}

func (a *App) build(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	db, err := openDB(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	files, err := a.openFiles(ctx)
	if err != nil {
		return err
	}
	m := metrics.New()

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	recipeRepo := repositories.NewRecipeRepository(db)
	ratingRepo := repositories.NewRatingRepository(db)
	favoriteRepo := repositories.NewFavoriteRepository(db)
	categoryRepo := repositories.NewCategoryRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)

	// === Notifications ===
	var mailer services.Notifier = services.NewEmailService(cfg.Email, log.With("component", "email"))
	var mirror services.ChatMirror
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" {
		bot, err := services.NewTelegramNotifier(tg.BotToken, tg.ChatID, log.With("component", "telegram"))
		if err != nil {
			// зеркало необязательно, сервис работает и без него
			log.Warn(ctx, "[app][telegram] disabled", "err", err)
		} else {
			mirror = bot
		}
	}
	a.pool = worker.NewPool(cfg.Notifications.Workers, cfg.Notifications.QueueSize, log.With("component", "worker"))
	a.pool.OnDrop(m.JobsDropped.Inc)

	// === Services ===
	tokens := authz.NewTokens(cfg.Server.JWTSecret, cfg.Server.AccessTTL)
	images := imageproc.NewProcessor(85)
	validator := validation.New()

	authService := services.NewAuthService(userRepo, tokens, cfg.Server.RefreshTTL, log)
	pending := services.NewPendingRegistrations(store, files, cfg.Registration.CodeTTL, cfg.Registration.DataTTL, log)
	registration := services.NewRegistrationService(userRepo, pending, files, images, mailer, authService, validator, m, log)
	watchers := services.NewWatchers(recipeRepo, favoriteRepo, ratingRepo, mailer, mirror,
		cfg.Notifications, cfg.Server.BaseURL, a.pool, m, log)
	ratings := services.NewRatingService(ratingRepo, recipeRepo, watchers, log)
	favorites := services.NewFavoriteService(favoriteRepo, recipeRepo, userRepo, watchers, log)
	recipes := services.NewRecipeService(recipeRepo, categoryRepo, ratingRepo, favoriteRepo, files, images,
		pdf.NewRecipeCardGenerator(cfg.PDF.FontPath), validator, log)
	resets := services.NewPasswordResetService(userRepo, resetRepo, mailer, authService, log)
	a.janitor = services.NewTempJanitor(files, cfg.Registration.DataTTL, m, log)

	// === Gin ===
	if err := handlers.RegisterBindingTags(); err != nil {
		return fmt.Errorf("register binding tags: %w", err)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(m.Middleware())
	router.Use(middleware.RequestLogger(log))
	// запас под multipart с картинкой до 1 MiB
	router.MaxMultipartMemory = 4 << 20

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/healthz", a.healthz)

	routes.SetupRoutes(router, tokens, routes.Handlers{
		Registration: handlers.NewRegistrationHandler(registration, log),
		Auth:         handlers.NewAuthHandler(authService, resets, log),
		Users:        handlers.NewUserHandler(services.NewUserService(userRepo, recipeRepo), log),
		Recipes:      handlers.NewRecipeHandler(recipes, ratings, favorites, log),
		Categories:   handlers.NewCategoryHandler(services.NewCategoryService(categoryRepo), log),
	})
	a.router = router
	return nil
}

func (a *App) Router() http.Handler { return a.router }

func (a *App) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := a.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run serves HTTP until ctx is cancelled, then drains the worker pool.
func (a *App) Run(ctx context.Context) error {
	// очередь дорабатывается после отмены ctx
	a.pool.Start(context.WithoutCancel(ctx))
	defer a.pool.Stop()

	go a.janitor.Run(ctx, a.cfg.Registration.TempPurgeInterval)
	if a.memory != nil {
		go a.memory.RunJanitor(ctx, time.Minute)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "[app][http] listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.log.Info(shutdownCtx, "[app][http] shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn(context.Background(), "[app][close] failed", "err", err)
		}
	}
	a.closers = nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
