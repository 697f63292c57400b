// Package files loads chapter content laid out as an index file listing
// chapter files, either from a directory or over HTTP.
package files

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"chapter-quiz/internal/domain"
)

// DefaultIndex is the index file name; chapter files live under ChaptersDir.
const (
	DefaultIndex = "chapters.json"
	ChaptersDir  = "chapters"
)

// DecodeIndex parses the index: a JSON array of chapter-file names.
func DecodeIndex(raw []byte) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return ids, nil
}

// DecodeChapterFile parses one chapter file. Files hold either a single
// chapter object or an array of them.
func DecodeChapterFile(raw []byte) ([]domain.Chapter, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty chapter file")
	}

	if trimmed[0] == '[' {
		var chapters []domain.Chapter
		if err := json.Unmarshal(trimmed, &chapters); err != nil {
			return nil, fmt.Errorf("decode chapter file: %w", err)
		}
		return chapters, nil
	}

	var chapter domain.Chapter
	if err := json.Unmarshal(trimmed, &chapter); err != nil {
		return nil, fmt.Errorf("decode chapter file: %w", err)
	}
	return []domain.Chapter{chapter}, nil
}
