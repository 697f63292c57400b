package cli

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chapter-quiz/internal/config"
	"chapter-quiz/internal/domain"
)

func writeContent(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestBuildRuntimeFromDirectoryWithSQLite(t *testing.T) {
	dir := t.TempDir()
	writeContent(t, dir, map[string]string{
		"chapters.json":        `["intro.json", "broken.json"]`,
		"chapters/intro.json":  `{"name": "Intro", "questions": [{"text": "2+2?", "options": ["3", "4"], "answer": 1}]}`,
		"chapters/broken.json": `{not json`,
	})

	cfg := config.Default()
	cfg.Content.Dir = dir
	cfg.Content.CacheTTL = "1m"
	cfg.Store.SQLitePath = filepath.Join(dir, "quiz.db")
	cfg.Store.Namespace = "test"

	ctx := context.Background()
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer rt.Close()
	if err := rt.loadContent(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rt.repo.Chapters()) != 1 || len(rt.repo.Warnings()) != 1 {
		t.Fatalf("expected one chapter and one warning, got %d/%d", len(rt.repo.Chapters()), len(rt.repo.Warnings()))
	}

	out := &bytes.Buffer{}
	body := `[{"name": "intro", "questions": [{"text": "3+3?", "options": ["6", "7"], "answer": 0}]}]`
	if err := importChapters(ctx, rt.custom, []byte(body), out); err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out.String(), "Bulk questions added successfully!") {
		t.Fatalf("unexpected import output %q", out.String())
	}
	rt.Close()

	// The ledger survives a restart against the same database.
	rt2, err := buildRuntime(ctx, cfg)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	defer rt2.Close()
	if err := rt2.loadContent(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	intro, ok := rt2.repo.FindChapterByName("INTRO")
	if !ok || len(intro.Questions) != 2 {
		t.Fatalf("expected imported question replayed, got %+v", intro)
	}
}

func TestLoadContentReportsUserMessage(t *testing.T) {
	cfg := config.Default()
	cfg.Content.Dir = t.TempDir()
	cfg.Store.Backend = "memory"

	rt, err := buildRuntime(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer rt.Close()
	err = rt.loadContent(context.Background())
	if err == nil || err.Error() != domain.LoadMessage {
		t.Fatalf("expected load message, got %v", err)
	}
}

func TestBuildRuntimeRejectsUnknownBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "etcd"
	if _, err := buildRuntime(context.Background(), cfg); err == nil {
		t.Fatalf("expected unknown backend error")
	}

	cfg = config.Default()
	cfg.Content.Source = "http"
	if _, err := buildRuntime(context.Background(), cfg); err == nil {
		t.Fatalf("expected missing baseURL error")
	}

	cfg = config.Default()
	cfg.Store.Backend = "redis"
	if _, err := buildRuntime(context.Background(), cfg); err == nil {
		t.Fatalf("expected missing redis address error")
	}
}

func TestLoadContentLogsSkippedFileOnce(t *testing.T) {
	dir := t.TempDir()
	writeContent(t, dir, map[string]string{
		"chapters.json":        `["intro.json", "broken.json"]`,
		"chapters/intro.json":  `{"name": "Intro", "questions": [{"text": "2+2?", "options": ["3", "4"], "answer": 1}]}`,
		"chapters/broken.json": `{not json`,
	})
	cfg := config.Default()
	cfg.Content.Dir = dir
	cfg.Store.Backend = "memory"

	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	rt, err := buildRuntime(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer rt.Close()
	if err := rt.loadContent(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if n := strings.Count(logs.String(), "broken.json"); n != 1 {
		t.Fatalf("expected the skipped file logged once, got %d:\n%s", n, logs.String())
	}
	if !strings.Contains(logs.String(), "loaded 1 chapters, skipped 1 files") {
		t.Fatalf("missing load summary:\n%s", logs.String())
	}
}
