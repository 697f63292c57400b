package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"chapter-quiz/internal/app"
	"chapter-quiz/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ChapterCache caches chapter files in Redis and falls back to the wrapped
// source on a miss. Files are stored as: SET quiz:chapter:{id} <json> EX ttl.
// The index is never cached.
type ChapterCache struct {
	client *redis.Client
	source app.ContentSource
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewChapterCache(client *redis.Client, source app.ContentSource, ttl time.Duration) *ChapterCache {
	return &ChapterCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ChapterCache) Index(ctx context.Context) ([]string, error) {
	return c.source.Index(ctx)
}

func (c *ChapterCache) Chapter(ctx context.Context, id string) ([]domain.Chapter, error) {
	if chapters, ok := c.cached(ctx, id); ok {
		return chapters, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if chapters, ok := c.cached(ctx, id); ok {
			return chapters, nil
		}

		chapters, err := c.source.Chapter(ctx, id)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(chapters)
		if err == nil {
			err = c.client.Set(ctx, c.key(id), data, c.ttlWithJitter()).Err()
		}
		if err != nil {
			// best-effort: the fetched file is still served
			log.Printf("cache chapter file %q: %v", id, err)
		}
		return chapters, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Chapter), nil
}

func (c *ChapterCache) cached(ctx context.Context, id string) ([]domain.Chapter, bool) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var chapters []domain.Chapter
	if err := json.Unmarshal(raw, &chapters); err != nil {
		return nil, false
	}
	return chapters, true
}

func (c *ChapterCache) key(id string) string {
	return "quiz:chapter:" + id
}

func (c *ChapterCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
