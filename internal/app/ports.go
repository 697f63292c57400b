package app

import (
	"context"

	"chapter-quiz/internal/domain"
)

// Keys used in the persistent store.
const (
	LedgerKey   = "customQuizQuestions"
	ProgressKey = "chapterProgress"
)

// ContentSource resolves the chapter index and individual chapter files
// (directory, HTTP, Postgres, in-memory).
type ContentSource interface {
	// Index returns the ordered chapter-file identifiers. A failure is fatal.
	Index(ctx context.Context) ([]string, error)
	// Chapter loads one chapter file. Files holding an array of chapters are flattened.
	Chapter(ctx context.Context, id string) ([]domain.Chapter, error)
}

// KVStore is a string-keyed store that survives restarts.
type KVStore interface {
	// Get returns ok=false for an absent key; that is not an error.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Namespaced prefixes every key with ns + ":". An empty ns returns store unchanged.
func Namespaced(store KVStore, ns string) KVStore {
	if ns == "" {
		return store
	}
	return namespacedStore{store: store, prefix: ns + ":"}
}

type namespacedStore struct {
	store  KVStore
	prefix string
}

func (n namespacedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return n.store.Get(ctx, n.prefix+key)
}

func (n namespacedStore) Set(ctx context.Context, key, value string) error {
	return n.store.Set(ctx, n.prefix+key, value)
}
