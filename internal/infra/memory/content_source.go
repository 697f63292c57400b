package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"chapter-quiz/internal/app"
	"chapter-quiz/internal/domain"
	"golang.org/x/sync/singleflight"
)

// StaticSource is a content source backed by in-memory chapter files (useful for tests/demos).
type StaticSource struct {
	index []string
	files map[string][]domain.Chapter
}

// NewStaticSource serves one file per chapter, named after the chapter, in the given order.
func NewStaticSource(chapters ...domain.Chapter) *StaticSource {
	s := &StaticSource{files: make(map[string][]domain.Chapter, len(chapters))}
	for _, chapter := range chapters {
		id := chapter.Name + ".json"
		s.index = append(s.index, id)
		s.files[id] = []domain.Chapter{chapter.Clone()}
	}
	return s
}

// NewStaticSourceFromFiles serves exactly the given index and files; ids
// listed in index but absent from files fail to load.
func NewStaticSourceFromFiles(index []string, files map[string][]domain.Chapter) *StaticSource {
	return &StaticSource{index: index, files: files}
}

func (s *StaticSource) Index(_ context.Context) ([]string, error) {
	out := make([]string, len(s.index))
	copy(out, s.index)
	return out, nil
}

func (s *StaticSource) Chapter(_ context.Context, id string) ([]domain.Chapter, error) {
	chapters, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("chapter file %q not found", id)
	}
	out := make([]domain.Chapter, len(chapters))
	for i, chapter := range chapters {
		out[i] = chapter.Clone()
	}
	return out, nil
}

// CachingSource caches chapter files with a TTL so repeated reloads do not
// hit the backing source. The index is always fetched fresh.
type CachingSource struct {
	source app.ContentSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	rndMu sync.Mutex
	cache map[string]cachedFile
}

type cachedFile struct {
	chapters  []domain.Chapter
	expiresAt time.Time
}

func NewCachingSource(source app.ContentSource, ttl time.Duration) *CachingSource {
	return &CachingSource{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedFile),
	}
}

func (c *CachingSource) Index(ctx context.Context) ([]string, error) {
	return c.source.Index(ctx)
}

func (c *CachingSource) Chapter(ctx context.Context, id string) ([]domain.Chapter, error) {
	if chapters, ok := c.lookup(id); ok {
		return chapters, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		if chapters, ok := c.lookup(id); ok {
			return chapters, nil
		}

		chapters, err := c.source.Chapter(ctx, id)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[id] = cachedFile{
			chapters:  chapters,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return chapters, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneAll(result.([]domain.Chapter)), nil
}

// Invalidate drops every cached file.
func (c *CachingSource) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]cachedFile)
	c.mu.Unlock()
}

func (c *CachingSource) lookup(id string) ([]domain.Chapter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[id]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return cloneAll(entry.chapters), true
}

func (c *CachingSource) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func cloneAll(chapters []domain.Chapter) []domain.Chapter {
	out := make([]domain.Chapter, len(chapters))
	for i, chapter := range chapters {
		out[i] = chapter.Clone()
	}
	return out
}
