package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries everything the server needs at startup. Values come from
// defaults, then an optional yaml file, then environment overrides.
type Config struct {
	Addr          string        `yaml:"addr"`
	DatabaseURL   string        `yaml:"database_url"`
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
	ClientOrigin  string        `yaml:"client_origin"`

	// MatchThreshold is the inclusive cosine-similarity cutoff for
	// storing a pair as a match.
	MatchThreshold float64 `yaml:"match_threshold"`

	// MaxMessageLen bounds a chat message body in characters.
	MaxMessageLen int `yaml:"max_message_len"`

	// PreviewLen bounds the denormalized room preview.
	PreviewLen int `yaml:"preview_len"`

	// HistoryLimit / HistoryLimitMax are the default and the cap for the
	// message-history limit query parameter.
	HistoryLimit    int `yaml:"history_limit"`
	HistoryLimitMax int `yaml:"history_limit_max"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:            getEnv("ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", "user=admin password=password dbname=connectai sslmode=disable"),
		JWTSecret:       getEnv("JWT_SECRET", "your_secret_key_please_change_in_production"),
		TokenDuration:   24 * time.Hour,
		ClientOrigin:    getEnv("CLIENT_URL", "http://localhost:5173"),
		MatchThreshold:  0.75,
		MaxMessageLen:   1000,
		PreviewLen:      100,
		HistoryLimit:    50,
		HistoryLimitMax: 200,
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
