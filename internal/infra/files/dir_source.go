package files

import (
	"context"
	"io/fs"
	"os"
	"path"

	"chapter-quiz/internal/domain"
)

// DirSource reads the index and chapter files from a file system.
type DirSource struct {
	fsys  fs.FS
	index string
}

// NewDirSource reads from dir on disk. An empty index uses DefaultIndex.
func NewDirSource(dir, index string) *DirSource {
	return NewFSSource(os.DirFS(dir), index)
}

// NewFSSource reads from fsys; index is the index file path inside fsys.
func NewFSSource(fsys fs.FS, index string) *DirSource {
	if index == "" {
		index = DefaultIndex
	}
	return &DirSource{fsys: fsys, index: index}
}

func (s *DirSource) Index(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := fs.ReadFile(s.fsys, s.index)
	if err != nil {
		return nil, err
	}
	return DecodeIndex(raw)
}

func (s *DirSource) Chapter(ctx context.Context, id string) ([]domain.Chapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := fs.ReadFile(s.fsys, path.Join(ChaptersDir, id))
	if err != nil {
		return nil, err
	}
	return DecodeChapterFile(raw)
}
