package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ConfigError marks a local store file that exists but cannot be parsed.
// It is fatal: silently discarding cost or history data would be worse
// than stopping.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("malformed store file %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Cost event kinds.
const (
	KindIndex = "index"
	KindQuery = "query"
)

// CostEvent is one append-only ledger entry. Insertion order is
// chronological; timestamps are assumed monotonic, not enforced.
type CostEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Kind      string            `json:"type"`
	Tokens    int               `json:"tokens"`
	CostUSD   float64           `json:"cost_usd"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ChatTurn is one prompt/response exchange. Failed turns carry an error
// marker in Response and zero cost.
type ChatTurn struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Prompt       string    `json:"prompt"`
	Response     string    `json:"response"`
	Model        string    `json:"model"`
	Channel      string    `json:"channel,omitempty"`
	CostUSD      float64   `json:"cost_usd"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Failed       bool      `json:"failed,omitempty"`
}

// IndexEntry records a completed upload for one video. Presence in the
// index cache means "already uploaded, do not re-upload".
type IndexEntry struct {
	DocName    string    `json:"doc_name"`
	Title      string    `json:"title"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// StoreEntry maps a logical store key to the remote File Search store that
// backs it, so the same store is reused across runs.
type StoreEntry struct {
	StoreID     string    `json:"store_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
