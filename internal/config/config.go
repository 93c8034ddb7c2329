package config

import (
	"os"
	"path/filepath"
)

type Config struct {
	Data   DataConfig
	Gemini GeminiConfig
	Scrape ScrapeConfig
	Log    LogConfig
}

type DataConfig struct {
	// Dir holds the JSON stores and the transcripts/ subdirectory.
	Dir string
}

type GeminiConfig struct {
	// BaseURL overrides the production API endpoint (mostly for tests).
	BaseURL      string
	DefaultModel string
	// StoreKey names the logical vector store shared by all channels.
	StoreKey string
}

type ScrapeConfig struct {
	// PageTimeoutSec bounds each page fetch.
	PageTimeoutSec int
	// RatePerSec paces page fetches.
	RatePerSec float64
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Data: DataConfig{
			Dir: defaultDataDir(),
		},
		Gemini: GeminiConfig{
			DefaultModel: "gemini-2.0-flash-exp",
			StoreKey:     "youtube_transcripts",
		},
		Scrape: ScrapeConfig{
			PageTimeoutSec: 30,
			RatePerSec:     1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/ytrag/config.json, then applies YTRAG_* environment
// overrides. The Gemini API key is a secret and is never stored in the
// backend; it comes from GEMINI_API_KEY alone (see the genai package).
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// TranscriptsDir returns the transcript artifact directory under Data.Dir.
func (c Config) TranscriptsDir() string {
	return filepath.Join(c.Data.Dir, "transcripts")
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "ytrag-data"
		}
	}
	return filepath.Join(dir, "ytrag")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "ytrag", "config.json")
}
