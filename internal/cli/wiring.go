package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"chapter-quiz/internal/app"
	"chapter-quiz/internal/config"
	"chapter-quiz/internal/domain"
	"chapter-quiz/internal/infra/files"
	"chapter-quiz/internal/infra/memory"
	pgstore "chapter-quiz/internal/infra/postgres"
	redisstore "chapter-quiz/internal/infra/redis"
	"chapter-quiz/internal/infra/sqlite"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// runtime holds the wired application for one command invocation.
type runtime struct {
	cfg      config.Config
	repo     *app.ContentRepository
	progress *app.ProgressTracker
	service  *app.QuizService
	custom   *app.CustomStore
	closers  []func()
}

// Close releases connections in reverse order. It is safe to call twice.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// buildRuntime connects the configured content source and store and wires
// the services on top. Content is not loaded yet.
func buildRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" && (cfg.Content.Source == "postgres" || cfg.Store.Backend == "postgres") {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
	}

	source, err := buildSource(cfg, pool, redisClient)
	if err != nil {
		rt.Close()
		return nil, err
	}
	store, err := buildStore(rt, cfg, pool, redisClient)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if cfg.Store.Namespace != "" {
		store = app.Namespaced(store, cfg.Store.Namespace)
	}

	rt.repo = app.NewContentRepository(source, store)
	rt.repo.SetFetchLimit(cfg.Content.FetchLimit)
	rt.progress = app.NewProgressTracker(store)
	rt.service = app.NewQuizService(rt.repo, rt.progress)
	rt.custom = app.NewCustomStore(store, rt.repo)
	return rt, nil
}

func buildSource(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (app.ContentSource, error) {
	var source app.ContentSource
	switch cfg.Content.Source {
	case "", "dir":
		source = files.NewDirSource(cfg.Content.Dir, cfg.Content.Index)
	case "http":
		if cfg.Content.BaseURL == "" {
			return nil, errors.New("content.baseURL is required for the http source")
		}
		source = files.NewHTTPSource(cfg.Content.BaseURL, cfg.Content.Index, config.Duration(cfg.Content.Timeout, 10*time.Second))
	case "postgres":
		if pool == nil {
			return nil, errors.New("postgres.url is required for the postgres source")
		}
		source = pgstore.NewChapterSource(pool)
	default:
		return nil, fmt.Errorf("unknown content source %q", cfg.Content.Source)
	}

	ttl := config.Duration(cfg.Content.CacheTTL, 0)
	if ttl <= 0 {
		return source, nil
	}
	if redisClient != nil {
		return redisstore.NewChapterCache(redisClient, source, ttl), nil
	}
	return memory.NewCachingSource(source, ttl), nil
}

func buildStore(rt *runtime, cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (app.KVStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		return memory.NewKVStore(), nil
	case "", "sqlite":
		store, err := sqlite.NewKVStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = store.Close() })
		return store, nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis.addr is required for the redis store")
		}
		return redisstore.NewKVStore(redisClient), nil
	case "postgres":
		if pool == nil {
			return nil, errors.New("postgres.url is required for the postgres store")
		}
		return pgstore.NewKVStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// loadContent runs the initial load. The repository logs each skipped
// file; a fatal load error is reported with its user-facing message.
func (rt *runtime) loadContent(ctx context.Context) error {
	chapters, err := rt.repo.Load(ctx)
	if err != nil {
		var loadErr *domain.LoadError
		if errors.As(err, &loadErr) {
			log.Printf("content load failed: %v", loadErr)
			return errors.New(loadErr.UserMessage())
		}
		return err
	}
	log.Printf("loaded %d chapters, skipped %d files", len(chapters), len(rt.repo.Warnings()))
	return nil
}

// setup loads config, wires the runtime and loads content.
func setup(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.URL != "" && (cfg.Content.Source == "postgres" || cfg.Store.Backend == "postgres") {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
	}
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := rt.loadContent(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}
