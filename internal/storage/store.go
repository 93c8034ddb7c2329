package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	costsFileName   = "costs.json"
	historyFileName = "history.json"
	indexFileName   = "index.json"
	storesFileName  = "stores.json"
)

// Store holds the four JSON-backed local stores. Each file is read fully
// into memory at Open and rewritten in full after every mutation, so a
// crash mid-run leaves all completed writes durable. There is exactly one
// process and one logical thread of control; no locking discipline is
// needed.
type Store struct {
	dir string

	costs  costsFile
	turns  historyFile
	index  map[string]IndexEntry
	stores map[string]StoreEntry
}

// On-disk wrappers keep the file layout the tool has always written.
type costsFile struct {
	Transactions []CostEvent `json:"transactions"`
}

type historyFile struct {
	Conversations []ChatTurn `json:"conversations"`
}

// Open loads (or creates) the stores under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &Store{
		dir:    dataDir,
		index:  make(map[string]IndexEntry),
		stores: make(map[string]StoreEntry),
	}

	if err := s.loadFile(costsFileName, &s.costs); err != nil {
		return nil, err
	}
	if err := s.loadFile(historyFileName, &s.turns); err != nil {
		return nil, err
	}
	if err := s.loadFile(indexFileName, &s.index); err != nil {
		return nil, err
	}
	if err := s.loadFile(storesFileName, &s.stores); err != nil {
		return nil, err
	}

	return s, nil
}

// Dir returns the data directory the store was opened on.
func (s *Store) Dir() string { return s.dir }

func (s *Store) loadFile(name string, v any) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	return nil
}

// saveFile rewrites the named store file in full. The write goes through a
// temp file in the same directory plus a rename, so readers never observe a
// torn file.
func (s *Store) saveFile(name string, v any) error {
	path := filepath.Join(s.dir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

// --- Cost ledger ---

// AppendCost appends one ledger entry and persists the ledger.
func (s *Store) AppendCost(ev CostEvent) error {
	s.costs.Transactions = append(s.costs.Transactions, ev)
	return s.saveFile(costsFileName, &s.costs)
}

// Costs returns the in-memory ledger snapshot in insertion order.
func (s *Store) Costs() []CostEvent {
	return s.costs.Transactions
}

// --- Chat history ---

// AppendTurn appends one chat turn and persists the history.
func (s *Store) AppendTurn(turn ChatTurn) error {
	s.turns.Conversations = append(s.turns.Conversations, turn)
	return s.saveFile(historyFileName, &s.turns)
}

// Turns returns all chat turns in insertion order.
func (s *Store) Turns() []ChatTurn {
	return s.turns.Conversations
}

// RecentTurns returns the last n chat turns, oldest first.
func (s *Store) RecentTurns(n int) []ChatTurn {
	turns := s.turns.Conversations
	if n <= 0 || n >= len(turns) {
		return turns
	}
	return turns[len(turns)-n:]
}

// SearchTurns returns turns whose prompt or response contains the query,
// case-insensitively.
func (s *Store) SearchTurns(query string) []ChatTurn {
	q := strings.ToLower(query)
	var matches []ChatTurn
	for _, turn := range s.turns.Conversations {
		if strings.Contains(strings.ToLower(turn.Prompt), q) ||
			strings.Contains(strings.ToLower(turn.Response), q) {
			matches = append(matches, turn)
		}
	}
	return matches
}

// ClearHistory drops all chat turns and persists the empty history.
func (s *Store) ClearHistory() error {
	s.turns.Conversations = nil
	return s.saveFile(historyFileName, &s.turns)
}

// --- Index cache ---

// IndexEntry returns the upload record for a video, if any.
func (s *Store) IndexEntry(videoID string) (IndexEntry, bool) {
	e, ok := s.index[videoID]
	return e, ok
}

// PutIndexEntry records a completed upload and persists the cache
// immediately, so an interrupted run never re-uploads this video.
func (s *Store) PutIndexEntry(videoID string, e IndexEntry) error {
	s.index[videoID] = e
	return s.saveFile(indexFileName, s.index)
}

// IndexSize returns the number of uploaded videos in the cache.
func (s *Store) IndexSize() int { return len(s.index) }

// IndexedIDs returns the cached video IDs in no particular order.
func (s *Store) IndexedIDs() []string {
	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	return ids
}

// --- Remote store config ---

// StoreEntry returns the remote store mapping for a store key.
func (s *Store) StoreEntry(key string) (StoreEntry, bool) {
	e, ok := s.stores[key]
	return e, ok
}

// PutStoreEntry records a remote store mapping and persists it.
func (s *Store) PutStoreEntry(key string, e StoreEntry) error {
	s.stores[key] = e
	return s.saveFile(storesFileName, s.stores)
}

// DeleteStoreEntry removes a remote store mapping.
func (s *Store) DeleteStoreEntry(key string) error {
	if _, ok := s.stores[key]; !ok {
		return ErrNotFound
	}
	delete(s.stores, key)
	return s.saveFile(storesFileName, s.stores)
}

// StoreEntries returns all remote store mappings by key.
func (s *Store) StoreEntries() map[string]StoreEntry {
	cp := make(map[string]StoreEntry, len(s.stores))
	for k, v := range s.stores {
		cp[k] = v
	}
	return cp
}
