package memory

import (
	"context"
	"testing"
	"time"

	"chapter-quiz/internal/domain"
)

func TestCachingSourceCaches(t *testing.T) {
	source := &countingSource{StaticSource: NewStaticSource(sampleChapter())}
	cache := NewCachingSource(source, time.Minute)

	if _, err := cache.Chapter(context.Background(), "Intro.json"); err != nil {
		t.Fatalf("get chapter: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected source once, got %d", source.calls)
	}

	if _, err := cache.Chapter(context.Background(), "Intro.json"); err != nil {
		t.Fatalf("get chapter 2: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls %d", source.calls)
	}

	cache.Invalidate()
	if _, err := cache.Chapter(context.Background(), "Intro.json"); err != nil {
		t.Fatalf("get chapter 3: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected reload after invalidate, source calls %d", source.calls)
	}
}

func TestCachingSourceExpires(t *testing.T) {
	source := &countingSource{StaticSource: NewStaticSource(sampleChapter())}
	cache := NewCachingSource(source, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.Chapter(context.Background(), "Intro.json")
	now = now.Add(2 * time.Minute)
	_, _ = cache.Chapter(context.Background(), "Intro.json")
	if source.calls != 2 {
		t.Fatalf("expected expired entry to reload, source calls %d", source.calls)
	}
}

func TestCachingSourceReturnsCopies(t *testing.T) {
	cache := NewCachingSource(NewStaticSource(sampleChapter()), time.Minute)

	first, _ := cache.Chapter(context.Background(), "Intro.json")
	first[0].Questions[0].Text = "mutated"

	second, _ := cache.Chapter(context.Background(), "Intro.json")
	if second[0].Questions[0].Text != "2+2?" {
		t.Fatalf("cache entry was mutated through a returned copy")
	}
}

func TestStaticSourceMissingFile(t *testing.T) {
	source := NewStaticSourceFromFiles([]string{"missing.json"}, nil)
	if _, err := source.Chapter(context.Background(), "missing.json"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

type countingSource struct {
	*StaticSource
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
