package postgres

import (
	"context"
	"fmt"

	"chapter-quiz/internal/domain"
	"chapter-quiz/internal/infra/files"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ChapterSource serves chapters stored as JSONB rows. The index is the
// chapter ids ordered by position.
type ChapterSource struct {
	pool *pgxpool.Pool
}

func NewChapterSource(pool *pgxpool.Pool) *ChapterSource {
	return &ChapterSource{pool: pool}
}

func (s *ChapterSource) Index(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM chapters ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query chapter index: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chapter id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chapter index: %w", err)
	}
	return ids, nil
}

func (s *ChapterSource) Chapter(ctx context.Context, id string) ([]domain.Chapter, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM chapters WHERE id=$1`, id).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("load chapter: %w", err)
	}
	chapters, err := files.DecodeChapterFile(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal chapter: %w", err)
	}
	return chapters, nil
}
