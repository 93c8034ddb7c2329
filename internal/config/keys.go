package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "data.dir", typ: kString, env: "YTRAG_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Data.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Data.Dir },
	},
	{
		key: "gemini.base_url", typ: kString, env: "YTRAG_GEMINI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.BaseURL },
	},
	{
		key: "gemini.default_model", typ: kString, env: "YTRAG_GEMINI_DEFAULT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.DefaultModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.DefaultModel },
	},
	{
		key: "gemini.store_key", typ: kString, env: "YTRAG_GEMINI_STORE_KEY",
		apply:   func(cfg *Config, v any) { cfg.Gemini.StoreKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.StoreKey },
	},
	{
		key: "scrape.page_timeout_sec", typ: kInt, env: "YTRAG_SCRAPE_PAGE_TIMEOUT_SEC",
		apply:   func(cfg *Config, v any) { cfg.Scrape.PageTimeoutSec = v.(int) },
		extract: func(cfg Config) any { return cfg.Scrape.PageTimeoutSec },
	},
	{
		key: "scrape.rate_per_sec", typ: kFloat, env: "YTRAG_SCRAPE_RATE_PER_SEC",
		apply:   func(cfg *Config, v any) { cfg.Scrape.RatePerSec = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scrape.RatePerSec },
	},
	{
		key: "log.level", typ: kString, env: "YTRAG_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
