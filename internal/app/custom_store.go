package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chapter-quiz/internal/domain"
)

// CustomStore persists user-added questions in the ledger and mirrors
// every write into the live repository.
type CustomStore struct {
	store KVStore
	repo  *ContentRepository
	mu    sync.Mutex
}

func NewCustomStore(store KVStore, repo *ContentRepository) *CustomStore {
	return &CustomStore{store: store, repo: repo}
}

// AddQuestion validates q and appends it to chapterName.
func (s *CustomStore) AddQuestion(ctx context.Context, chapterName string, q domain.Question) error {
	if strings.TrimSpace(chapterName) == "" {
		return &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if err := q.Validate(); err != nil {
		return err
	}
	return s.apply(ctx, []domain.Chapter{{Name: chapterName, Questions: []domain.Question{q}}})
}

// AddBulk validates every chapter and question before persisting any of
// them, then writes the ledger once. It returns the number of questions added.
func (s *CustomStore) AddBulk(ctx context.Context, chapters []domain.Chapter) (int, error) {
	added := 0
	for i, chapter := range chapters {
		if strings.TrimSpace(chapter.Name) == "" {
			return 0, &domain.ValidationError{Field: fmt.Sprintf("chapters[%d].name", i), Reason: "must not be empty"}
		}
		for j, q := range chapter.Questions {
			if err := q.Validate(); err != nil {
				var verr *domain.ValidationError
				if errors.As(err, &verr) {
					return 0, verr.WithPrefix(fmt.Sprintf("chapters[%d].questions[%d]", i, j))
				}
				return 0, err
			}
		}
		added += len(chapter.Questions)
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.apply(ctx, chapters); err != nil {
		return 0, err
	}
	return added, nil
}

// ImportBulk parses the textual bulk format and applies it all-or-nothing.
func (s *CustomStore) ImportBulk(ctx context.Context, raw []byte) (int, error) {
	chapters, err := ParseBulk(raw)
	if err != nil {
		return 0, err
	}
	return s.AddBulk(ctx, chapters)
}

// Ledger returns the persisted custom chapters.
func (s *CustomStore) Ledger(ctx context.Context) ([]domain.Chapter, error) {
	return readLedger(ctx, s.store)
}

// ledgerLock is the repository's ledger lock when mirroring, so writes
// cannot interleave with a reload's replay and publish.
func (s *CustomStore) ledgerLock() sync.Locker {
	if s.repo != nil {
		return &s.repo.ledgerMu
	}
	return &s.mu
}

func (s *CustomStore) apply(ctx context.Context, batch []domain.Chapter) error {
	lock := s.ledgerLock()
	lock.Lock()
	defer lock.Unlock()

	ledger, err := readLedger(ctx, s.store)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(ledger))
	for i, chapter := range ledger {
		index[chapter.Key()] = i
	}
	for _, chapter := range batch {
		if len(chapter.Questions) == 0 {
			continue
		}
		key := chapter.Key()
		if pos, ok := index[key]; ok {
			ledger[pos].Questions = append(ledger[pos].Questions, domain.CloneQuestions(chapter.Questions)...)
			continue
		}
		index[key] = len(ledger)
		ledger = append(ledger, domain.Chapter{
			Name:      strings.TrimSpace(chapter.Name),
			Questions: domain.CloneQuestions(chapter.Questions),
		})
	}

	data, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := s.store.Set(ctx, LedgerKey, string(data)); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}

	if s.repo != nil {
		for _, chapter := range batch {
			if len(chapter.Questions) > 0 {
				s.repo.appendQuestions(chapter.Name, chapter.Questions)
			}
		}
	}
	return nil
}

var errBulkShape = &domain.ValidationError{Reason: "invalid format: must be an array of chapters"}

// ParseBulk decodes the bulk-import format, an array of
// {"name": string, "questions": [{"text","options","answer"}]}. Shape
// problems are reported as *domain.ValidationError before any typed decoding.
func ParseBulk(raw []byte) ([]domain.Chapter, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &domain.ValidationError{Reason: "input is empty"}
	}
	if trimmed[0] != '[' {
		return nil, errBulkShape
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, &domain.ValidationError{Reason: "invalid JSON: " + err.Error()}
	}

	chapters := make([]domain.Chapter, 0, len(entries))
	for i, entry := range entries {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(entry, &probe); err != nil || probe == nil {
			return nil, errBulkShape
		}

		var name string
		if err := json.Unmarshal(probe["name"], &name); err != nil || strings.TrimSpace(name) == "" {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("chapters[%d].name", i), Reason: "missing chapter name"}
		}
		questions := bytes.TrimSpace(probe["questions"])
		if len(questions) == 0 || questions[0] != '[' {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("chapters[%d].questions", i), Reason: "must be an array"}
		}

		var chapter domain.Chapter
		if err := json.Unmarshal(entry, &chapter); err != nil {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("chapters[%d].questions", i), Reason: err.Error()}
		}
		chapters = append(chapters, chapter)
	}
	return chapters, nil
}
