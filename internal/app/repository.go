package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"chapter-quiz/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultFetchLimit = 8

// ContentRepository owns the live chapter list: base chapters from a
// ContentSource with the custom ledger replayed on top.
type ContentRepository struct {
	source     ContentSource
	store      KVStore
	fetchLimit int
	sf         singleflight.Group

	// ledgerMu serializes ledger read-modify-writes with the ledger replay
	// and publish step of Load.
	ledgerMu sync.Mutex

	mu       sync.RWMutex
	chapters []domain.Chapter
	warnings []domain.PartialLoadWarning
}

func NewContentRepository(source ContentSource, store KVStore) *ContentRepository {
	return &ContentRepository{
		source:     source,
		store:      store,
		fetchLimit: defaultFetchLimit,
	}
}

// SetFetchLimit bounds the number of chapter files fetched concurrently.
func (r *ContentRepository) SetFetchLimit(n int) {
	if n > 0 {
		r.fetchLimit = n
	}
}

// Load fetches base content, replays the custom ledger and publishes the
// merged list. On a fatal failure the live list is cleared and a
// *domain.LoadError is returned. Concurrent calls share one fetch.
func (r *ContentRepository) Load(ctx context.Context) ([]domain.Chapter, error) {
	result, err, _ := r.sf.Do("load", func() (interface{}, error) {
		base, warnings, err := r.loadBase(ctx)

		r.ledgerMu.Lock()
		defer r.ledgerMu.Unlock()
		var chapters []domain.Chapter
		if err == nil {
			chapters, err = r.replayLedger(ctx, base)
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.chapters = nil
			r.warnings = nil
			return nil, err
		}
		r.chapters = chapters
		r.warnings = warnings
		return cloneChapters(chapters), nil
	})
	if err != nil {
		return nil, err
	}
	return cloneChapters(result.([]domain.Chapter)), nil
}

// Refresh drops any cached chapter files held by the source, then loads.
func (r *ContentRepository) Refresh(ctx context.Context) ([]domain.Chapter, error) {
	if cache, ok := r.source.(interface{ Invalidate() }); ok {
		cache.Invalidate()
	}
	return r.Load(ctx)
}

func (r *ContentRepository) loadBase(ctx context.Context) ([]domain.Chapter, []domain.PartialLoadWarning, error) {
	ids, err := r.source.Index(ctx)
	if err != nil {
		return nil, nil, &domain.LoadError{Op: "index", Err: err}
	}

	files := make([][]domain.Chapter, len(ids))
	failures := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(r.fetchLimit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			chapters, err := r.source.Chapter(ctx, id)
			if err == nil {
				err = validateBaseChapters(chapters)
			}
			if err != nil {
				failures[i] = err
				return nil
			}
			files[i] = chapters
			return nil
		})
	}
	// Per-file failures are recorded, never returned, so Wait only settles.
	_ = g.Wait()

	var (
		merged   []domain.Chapter
		warnings []domain.PartialLoadWarning
		index    = make(map[string]int)
	)
	for i, id := range ids {
		if failures[i] != nil {
			w := domain.PartialLoadWarning{File: id, Err: failures[i]}
			log.Printf("%v", w)
			warnings = append(warnings, w)
			continue
		}
		for _, chapter := range files[i] {
			merged = mergeChapter(merged, index, chapter)
		}
	}

	return merged, warnings, nil
}

// replayLedger merges the custom ledger on top of the base chapters.
func (r *ContentRepository) replayLedger(ctx context.Context, base []domain.Chapter) ([]domain.Chapter, error) {
	ledger, err := readLedger(ctx, r.store)
	if err != nil {
		return nil, &domain.LoadError{Op: "custom ledger", Err: err}
	}
	index := make(map[string]int, len(base))
	for i, chapter := range base {
		index[chapter.Key()] = i
	}
	for _, custom := range ledger {
		base = mergeChapter(base, index, custom)
	}
	return base, nil
}

// mergeChapter appends chapter's questions to the entry with the same
// normalized name, or adds it. index maps keys to positions in list.
func mergeChapter(list []domain.Chapter, index map[string]int, chapter domain.Chapter) []domain.Chapter {
	key := chapter.Key()
	if pos, ok := index[key]; ok {
		list[pos].Questions = append(list[pos].Questions, domain.CloneQuestions(chapter.Questions)...)
		return list
	}
	index[key] = len(list)
	return append(list, chapter.Clone())
}

func validateBaseChapters(chapters []domain.Chapter) error {
	for i, chapter := range chapters {
		if strings.TrimSpace(chapter.Name) == "" {
			return fmt.Errorf("chapter %d: missing name", i)
		}
		for j, q := range chapter.Questions {
			if err := q.Validate(); err != nil {
				return fmt.Errorf("chapter %q question %d: %w", chapter.Name, j, err)
			}
		}
	}
	return nil
}

// Chapters returns a copy of the live chapter list.
func (r *ContentRepository) Chapters() []domain.Chapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneChapters(r.chapters)
}

// Warnings returns the chapter files dropped by the last successful load.
func (r *ContentRepository) Warnings() []domain.PartialLoadWarning {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PartialLoadWarning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// FindChapterByName looks a chapter up ignoring case and surrounding whitespace.
func (r *ContentRepository) FindChapterByName(name string) (domain.Chapter, bool) {
	key := domain.NormalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, chapter := range r.chapters {
		if chapter.Key() == key {
			return chapter.Clone(), true
		}
	}
	return domain.Chapter{}, false
}

// appendQuestions mirrors a ledger write into the live list.
func (r *ContentRepository) appendQuestions(name string, questions []domain.Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := domain.NormalizeName(name)
	for i := range r.chapters {
		if r.chapters[i].Key() == key {
			r.chapters[i].Questions = append(r.chapters[i].Questions, domain.CloneQuestions(questions)...)
			return
		}
	}
	r.chapters = append(r.chapters, domain.Chapter{
		Name:      strings.TrimSpace(name),
		Questions: domain.CloneQuestions(questions),
	})
}

func cloneChapters(chapters []domain.Chapter) []domain.Chapter {
	out := make([]domain.Chapter, len(chapters))
	for i, chapter := range chapters {
		out[i] = chapter.Clone()
	}
	return out
}

// readLedger decodes the custom ledger; an absent key is an empty ledger.
func readLedger(ctx context.Context, store KVStore) ([]domain.Chapter, error) {
	raw, ok, err := store.Get(ctx, LedgerKey)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ledger []domain.Chapter
	if err := json.Unmarshal([]byte(raw), &ledger); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return ledger, nil
}
