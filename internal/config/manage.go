package config

import (
	"fmt"
	"sort"
	"strconv"
)

// KeyInfo pairs a config key with its effective value, for `config show`.
type KeyInfo struct {
	Key   string
	Value string
}

// ShowAll returns every known key with its effective value after backend
// and environment resolution, sorted by key.
func ShowAll(cfg Config) []KeyInfo {
	infos := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		infos = append(infos, KeyInfo{Key: s.key, Value: fmt.Sprintf("%v", s.extract(cfg))})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// ValidKeys lists every settable key, sorted.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		keys = append(keys, s.key)
	}
	sort.Strings(keys)
	return keys
}

// SetKey validates and persists a single key to the default file backend.
func SetKey(key, value string) error {
	return setKey(newFileBackend(configFilePath()), key, value)
}

func setKey(b Backend, key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		switch s.typ {
		case kInt:
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("key %s expects an integer: %w", key, err)
			}
			return b.SetInt(key, i)
		case kFloat:
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				return fmt.Errorf("key %s expects a number: %w", key, err)
			}
			return b.SetString(key, value)
		default:
			return b.SetString(key, value)
		}
	}
	return fmt.Errorf("unknown config key %q (valid keys: %v)", key, ValidKeys())
}
