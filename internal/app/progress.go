package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chapter-quiz/internal/domain"
)

// ProgressTracker records chapter completion keyed by normalized name.
// Entries are only ever added or overwritten.
type ProgressTracker struct {
	store KVStore
	now   func() time.Time
}

func NewProgressTracker(store KVStore) *ProgressTracker {
	return NewProgressTrackerWithClock(store, time.Now)
}

// NewProgressTrackerWithClock allows deterministic timestamps in tests.
func NewProgressTrackerWithClock(store KVStore, now func() time.Time) *ProgressTracker {
	return &ProgressTracker{store: store, now: now}
}

// MarkCompleted sets the chapter completed at the current time. Repeated
// calls refresh the timestamp.
func (p *ProgressTracker) MarkCompleted(ctx context.Context, chapterName string) error {
	record, err := p.Record(ctx)
	if err != nil {
		return err
	}
	record[domain.NormalizeName(chapterName)] = domain.ProgressEntry{
		Completed:   true,
		CompletedAt: p.now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := p.store.Set(ctx, ProgressKey, string(data)); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

func (p *ProgressTracker) IsCompleted(ctx context.Context, chapterName string) (bool, error) {
	record, err := p.Record(ctx)
	if err != nil {
		return false, err
	}
	return record[domain.NormalizeName(chapterName)].Completed, nil
}

func (p *ProgressTracker) CompletedCount(ctx context.Context) (int, error) {
	record, err := p.Record(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range record {
		if entry.Completed {
			count++
		}
	}
	return count, nil
}

// Overview reports completed chapters against totalChapters.
func (p *ProgressTracker) Overview(ctx context.Context, totalChapters int) (domain.ProgressOverview, error) {
	completed, err := p.CompletedCount(ctx)
	if err != nil {
		return domain.ProgressOverview{}, err
	}
	return domain.NewProgressOverview(completed, totalChapters), nil
}

// Record returns the whole progress map; an absent key is an empty record.
func (p *ProgressTracker) Record(ctx context.Context) (map[string]domain.ProgressEntry, error) {
	raw, ok, err := p.store.Get(ctx, ProgressKey)
	if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}
	record := make(map[string]domain.ProgressEntry)
	if !ok || strings.TrimSpace(raw) == "" {
		return record, nil
	}
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return record, nil
}
