package redis

import (
	"context"
	"testing"
	"time"

	"chapter-quiz/internal/domain"
	"chapter-quiz/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestChapterCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	source := &countingSource{StaticSource: memory.NewStaticSource(sampleChapter())}
	cache := NewChapterCache(client, source, time.Minute)

	chapters, err := cache.Chapter(context.Background(), "Intro.json")
	if err != nil {
		t.Fatalf("get chapter: %v", err)
	}
	if len(chapters) != 1 || chapters[0].Name != "Intro" {
		t.Fatalf("unexpected chapters %+v", chapters)
	}
	if source.calls != 1 {
		t.Fatalf("expected source called once, got %d", source.calls)
	}
	if !mr.Exists("quiz:chapter:Intro.json") {
		t.Fatalf("expected chapter file cached in redis")
	}

	// Second call should hit cache, source not incremented.
	chapters, _ = cache.Chapter(context.Background(), "Intro.json")
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls=%d", source.calls)
	}
	if len(chapters[0].Questions) != 1 || chapters[0].Questions[0].Answer != 1 {
		t.Fatalf("cached chapter lost data: %+v", chapters)
	}

	mr.FastForward(2 * time.Minute)
	_, _ = cache.Chapter(context.Background(), "Intro.json")
	if source.calls != 2 {
		t.Fatalf("expected reload after expiry, source calls=%d", source.calls)
	}
}

func TestChapterCacheDoesNotCacheFailures(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewChapterCache(newClient(mr), memory.NewStaticSource(), time.Minute)
	if _, err := cache.Chapter(context.Background(), "missing.json"); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if mr.Exists("quiz:chapter:missing.json") {
		t.Fatalf("failed fetch should not be cached")
	}
}

type countingSource struct {
	*memory.StaticSource
	calls int
}

func (s *countingSource) Chapter(ctx context.Context, id string) ([]domain.Chapter, error) {
	s.calls++
	return s.StaticSource.Chapter(ctx, id)
}

func sampleChapter() domain.Chapter {
	return domain.Chapter{
		Name: "Intro",
		Questions: []domain.Question{
			{Text: "2+2?", Options: []string{"3", "4"}, Answer: 1},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
