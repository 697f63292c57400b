package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"chapter-quiz/internal/app"
	"chapter-quiz/internal/domain"
	pgstore "chapter-quiz/internal/infra/postgres"
	pgmigrations "chapter-quiz/internal/infra/postgres/migrations"
	infraredis "chapter-quiz/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestPostgresContentWithRedisStore(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedChapter(t, ctx, pgURL, "intro", 1, sampleChapter())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	source := infraredis.NewChapterCache(redisClient, pgstore.NewChapterSource(pool), 5*time.Minute)
	store := app.Namespaced(infraredis.NewKVStore(redisClient), "it")
	repo := app.NewContentRepository(source, store)
	if _, err := repo.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	custom := app.NewCustomStore(store, repo)
	if err := custom.AddQuestion(ctx, "INTRO", domain.Question{Text: "3+3?", Options: []string{"6", "7"}, Answer: 0}); err != nil {
		t.Fatalf("add question: %v", err)
	}

	progress := app.NewProgressTracker(store)
	service := app.NewQuizService(repo, progress)
	snap, err := service.Start(ctx, "intro")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.Total != 2 {
		t.Fatalf("expected base and custom question, got %d", snap.Total)
	}
	for snap.Question != nil {
		if _, err := service.Answer(ctx, snap.Question.Answer); err != nil {
			t.Fatalf("answer: %v", err)
		}
		if snap, err = service.Current(); err != nil {
			t.Fatalf("current: %v", err)
		}
	}
	summary, err := service.Complete(ctx)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if summary.Score != 2 || len(summary.Missed) != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	// A fresh repository over the same stores replays the ledger and progress.
	reloaded := app.NewContentRepository(pgstore.NewChapterSource(pool), app.Namespaced(pgstore.NewKVStore(pool), "it"))
	if _, err := reloaded.Load(ctx); err != nil {
		t.Fatalf("reload from postgres store: %v", err)
	}
	if intro, _ := reloaded.FindChapterByName("intro"); len(intro.Questions) != 1 {
		t.Fatalf("postgres store has no ledger yet, expected base question only, got %d", len(intro.Questions))
	}
	done, err := app.NewProgressTracker(store).IsCompleted(ctx, "Intro")
	if err != nil || !done {
		t.Fatalf("expected progress persisted in redis, got %v err=%v", done, err)
	}
}

func TestPostgresKVStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewKVStore(pool)
	if _, ok, err := store.Get(ctx, app.ProgressKey); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	progress := app.NewProgressTracker(store)
	if err := progress.MarkCompleted(ctx, "Intro"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := progress.MarkCompleted(ctx, "Basics"); err != nil {
		t.Fatalf("mark again: %v", err)
	}
	count, err := progress.CompletedCount(ctx)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 completed, got %d err=%v", count, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func seedChapter(t *testing.T, ctx context.Context, dsn, id string, position int, chapter domain.Chapter) {
	t.Helper()
	migrateDB(t, ctx, dsn)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	data, err := json.Marshal(chapter)
	if err != nil {
		t.Fatalf("marshal chapter: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO chapters (id, position, data) VALUES (?, ?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, id, position, string(data)); err != nil {
		t.Fatalf("insert chapter: %v", err)
	}
}

func sampleChapter() domain.Chapter {
	return domain.Chapter{
		Name: "Intro",
		Questions: []domain.Question{
			{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Answer: 1},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
