package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Content struct {
		Source     string `yaml:"source"` // dir | http | postgres
		Dir        string `yaml:"dir"`
		Index      string `yaml:"index"`
		BaseURL    string `yaml:"baseURL"`
		FetchLimit int    `yaml:"fetchLimit"`
		Timeout    string `yaml:"timeout"`
		CacheTTL   string `yaml:"cacheTTL"`
	} `yaml:"content"`
	Store struct {
		Backend    string `yaml:"backend"` // memory | sqlite | redis | postgres
		Namespace  string `yaml:"namespace"`
		SQLitePath string `yaml:"sqlitePath"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		FeedbackDelay string `yaml:"feedbackDelay"`
	} `yaml:"quiz"`
}

// Default is used when no config file exists: local directory content and
// a SQLite store next to it.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Content.Source = "dir"
	cfg.Content.Dir = "content"
	cfg.Content.FetchLimit = 8
	cfg.Content.Timeout = "10s"
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = "quiz.db"
	cfg.Quiz.FeedbackDelay = "1500ms"
	return cfg
}

// Load reads YAML config from path over Default. A missing file yields Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
