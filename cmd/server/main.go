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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/spokies-backend/internal/blob"
	"github.com/AnshRaj112/spokies-backend/internal/config"
	"github.com/AnshRaj112/spokies-backend/internal/database"
	"github.com/AnshRaj112/spokies-backend/internal/handlers"
	"github.com/AnshRaj112/spokies-backend/internal/logger"
	"github.com/AnshRaj112/spokies-backend/internal/metrics"
	"github.com/AnshRaj112/spokies-backend/internal/middleware"
	"github.com/AnshRaj112/spokies-backend/internal/routes"
	"github.com/AnshRaj112/spokies-backend/internal/services"
	"github.com/AnshRaj112/spokies-backend/internal/store"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	log := logger.InitFromConfig(cfg)
	if envErr != nil {
		log.Debug("no .env file found")
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Warn("failed to close store", "error", err)
		}
	}()

	var rdb *redis.Client
	if cfg.RedisURI != "" {
		log.Info("connecting to redis", "uri", database.MaskURI(cfg.RedisURI))
		rdb, err = database.ConnectRedis(ctx, cfg.RedisURI)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
	} else {
		log.Warn("REDIS_URI not set; profile cache disabled, pair locks and chat events are local to this instance")
	}

	blobs, uploadDir, err := openBlobStore(cfg, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		locker services.PairLocker
		bus    services.EventBus
	)
	if rdb != nil {
		locker = services.NewRedisPairLocker(rdb, log)
		redisBus := services.NewRedisBus(rdb, log)
		redisBus.Start(ctx)
		bus = redisBus
	} else {
		locker = services.NewLocalPairLocker()
		bus = services.NewLocalBus(log)
	}

	opts := []services.Option{services.WithLogger(log), services.WithMetrics(m)}
	h := handlers.New(handlers.Deps{
		Users:   services.NewUserService(st, blobs, services.NewProfileCache(rdb, cfg.ProfileCacheTTL, log), opts...),
		Search:  services.NewSearchService(st, st, opts...),
		Matches: services.NewMatchService(st, st, st, locker, opts...),
		Chats:   services.NewChatService(st, st, st, bus, opts...),
		Logger:  log,
		Metrics: m,
		Timeout: cfg.RequestTimeout,
	})

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustProxy)
	go limiter.RunCleanup(ctx)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log, m))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	routes.SetupRoutes(r, h, routes.Options{
		Limiter:   limiter,
		UploadDir: uploadDir,
		Gatherer:  reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("spokies backend listening", "port", cfg.Port, "env", cfg.Environment, "store", cfg.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		log.Info("connecting to postgres", "uri", database.MaskURI(cfg.PostgresURI))
		db, err := database.ConnectPostgres(ctx, cfg.PostgresURI)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := store.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return pg, nil

	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil

	default:
		log.Info("connecting to mongodb", "uri", database.MaskURI(cfg.MongoURI), "db", cfg.MongoDB)
		client, db, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		ms := store.NewMongoStore(client, db)
		if err := ensureIndexes(ctx, ms); err != nil {
			return nil, err
		}
		return ms, nil
	}
}

type indexedStore interface {
	EnsureIndexes(ctx context.Context) error
	Close(ctx context.Context) error
}

// ensureIndexes builds the store's indexes and closes it on failure. The
// unique indexes back duplicate detection.
func ensureIndexes(ctx context.Context, s indexedStore) error {
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = s.Close(ctx)
		return fmt.Errorf("ensure mongodb indexes: %w", err)
	}
	return nil
}

// openBlobStore prefers Cloudinary and falls back to the local upload
// directory. The returned dir is empty when no files need serving.
func openBlobStore(cfg *config.Config, log *slog.Logger) (blob.Store, string, error) {
	if cfg.CloudinaryEnabled() {
		cs, err := blob.NewCloudinaryStore(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err == nil {
			log.Info("photos stored in cloudinary", "folder", cfg.CloudinaryFolder)
			return cs, "", nil
		}
		log.Warn("failed to initialize cloudinary; falling back to local uploads", "error", err)
	}
	ds, err := blob.NewDiskStore(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("open upload dir: %w", err)
	}
	log.Info("photos stored on disk", "dir", ds.Dir())
	return ds, ds.Dir(), nil
}
