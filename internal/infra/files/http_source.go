package files

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chapter-quiz/internal/domain"
)

const maxFileSize = 4 << 20

// HTTPSource fetches {baseURL}/{index} and {baseURL}/chapters/{id}.
type HTTPSource struct {
	baseURL string
	index   string
	client  *http.Client
}

func NewHTTPSource(baseURL, index string, timeout time.Duration) *HTTPSource {
	if index == "" {
		index = DefaultIndex
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Index(ctx context.Context) ([]string, error) {
	raw, err := s.fetch(ctx, s.baseURL+"/"+s.index)
	if err != nil {
		return nil, err
	}
	return DecodeIndex(raw)
}

func (s *HTTPSource) Chapter(ctx context.Context, id string) ([]domain.Chapter, error) {
	raw, err := s.fetch(ctx, s.baseURL+"/"+ChaptersDir+"/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	return DecodeChapterFile(raw)
}

func (s *HTTPSource) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %d", reqURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
}
