package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/ytrag/internal/genai"
	"github.com/kalambet/ytrag/internal/scrape"
	"github.com/kalambet/ytrag/internal/storage"
)

type fakeScraper struct {
	videos      []scrape.Video
	transcripts map[string]string
	fetchCalls  []string
}

func (f *fakeScraper) ListVideos(_ context.Context, _ string, n int) ([]scrape.Video, error) {
	if n < len(f.videos) {
		return f.videos[:n], nil
	}
	return f.videos, nil
}

func (f *fakeScraper) FetchTranscript(_ context.Context, videoID string) (string, error) {
	f.fetchCalls = append(f.fetchCalls, videoID)
	t, ok := f.transcripts[videoID]
	if !ok {
		return "", scrape.ErrNoTranscript
	}
	return t, nil
}

type fakeUploader struct {
	created      int
	uploads      []string
	failUploads  bool
	knownStores  map[string]bool
	storeCounter int
}

func (f *fakeUploader) CreateStore(_ context.Context, displayName string) (genai.Store, error) {
	f.created++
	f.storeCounter++
	name := "fileSearchStores/store-" + string(rune('a'+f.storeCounter-1))
	if f.knownStores == nil {
		f.knownStores = map[string]bool{}
	}
	f.knownStores[name] = true
	return genai.Store{Name: name, DisplayName: displayName}, nil
}

func (f *fakeUploader) GetStore(_ context.Context, name string) (genai.Store, error) {
	if f.knownStores[name] {
		return genai.Store{Name: name}, nil
	}
	return genai.Store{}, errors.New("store not found")
}

func (f *fakeUploader) Upload(_ context.Context, _, path string) (string, error) {
	if f.failUploads {
		return "", errors.New("upload rejected")
	}
	f.uploads = append(f.uploads, path)
	return "fileSearchStores/store-a/documents/doc-" + filepath.Base(path), nil
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return st
}

func testVideos() []scrape.Video {
	return []scrape.Video{
		{VideoID: "vid1", Title: "First Video", URL: "https://www.youtube.com/watch?v=vid1"},
		{VideoID: "vid2", Title: "Second Video", URL: "https://www.youtube.com/watch?v=vid2"},
		{VideoID: "vid3", Title: "Third Video", URL: "https://www.youtube.com/watch?v=vid3"},
	}
}

func TestRunIngestsAllVideos(t *testing.T) {
	scraper := &fakeScraper{
		videos: testVideos(),
		transcripts: map[string]string{
			"vid1": "hello from the first video transcript",
			"vid2": "hello from the second video transcript",
			"vid3": "hello from the third video transcript",
		},
	}
	remote := &fakeUploader{}
	store := newTestStore(t)
	dir := t.TempDir()

	c := New(scraper, remote, store, dir, "youtube_transcripts")
	rep, err := c.Run(context.Background(), "https://www.youtube.com/@somechannel", 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.Found != 3 || rep.Ingested != 3 || rep.Skipped != 0 || rep.Failed != 0 {
		t.Errorf("report = %+v", rep)
	}
	if remote.created != 1 {
		t.Errorf("CreateStore called %d times, want 1", remote.created)
	}
	if len(remote.uploads) != 3 {
		t.Errorf("uploads = %d, want 3", len(remote.uploads))
	}
	if store.IndexSize() != 3 {
		t.Errorf("index size = %d, want 3", store.IndexSize())
	}

	events := store.Costs()
	if len(events) != 3 {
		t.Fatalf("cost events = %d, want 3", len(events))
	}
	for _, ev := range events {
		if ev.Kind != storage.KindIndex {
			t.Errorf("event kind = %q, want %q", ev.Kind, storage.KindIndex)
		}
		if ev.Tokens <= 0 || ev.CostUSD <= 0 {
			t.Errorf("event has zero tokens/cost: %+v", ev)
		}
	}

	files, err := scrape.SavedTranscripts(dir)
	if err != nil {
		t.Fatalf("SavedTranscripts: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("saved transcripts = %d, want 3", len(files))
	}
}

func TestRunSecondPassSkipsIndexed(t *testing.T) {
	scraper := &fakeScraper{
		videos: testVideos(),
		transcripts: map[string]string{
			"vid1": "transcript one",
			"vid2": "transcript two",
			"vid3": "transcript three",
		},
	}
	remote := &fakeUploader{}
	store := newTestStore(t)
	c := New(scraper, remote, store, t.TempDir(), "youtube_transcripts")

	if _, err := c.Run(context.Background(), "https://www.youtube.com/@ch", 10); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	scraper.fetchCalls = nil

	rep, err := c.Run(context.Background(), "https://www.youtube.com/@ch", 10)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if rep.Skipped != 3 || rep.Ingested != 0 {
		t.Errorf("second pass report = %+v", rep)
	}
	if len(scraper.fetchCalls) != 0 {
		t.Errorf("second pass fetched transcripts for %v, want none", scraper.fetchCalls)
	}
	if len(remote.uploads) != 3 {
		t.Errorf("uploads after second pass = %d, want 3", len(remote.uploads))
	}
}

func TestRunCountsMissingTranscripts(t *testing.T) {
	scraper := &fakeScraper{
		videos: testVideos(),
		transcripts: map[string]string{
			"vid2": "only the second video has captions",
		},
	}
	remote := &fakeUploader{}
	store := newTestStore(t)
	c := New(scraper, remote, store, t.TempDir(), "youtube_transcripts")

	rep, err := c.Run(context.Background(), "https://www.youtube.com/@ch", 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.NoTranscript != 2 || rep.Ingested != 1 || rep.Failed != 0 {
		t.Errorf("report = %+v", rep)
	}
	if store.IndexSize() != 1 {
		t.Errorf("index size = %d, want 1", store.IndexSize())
	}
}

func TestRunUploadFailureLeavesCacheUnwritten(t *testing.T) {
	scraper := &fakeScraper{
		videos:      testVideos()[:1],
		transcripts: map[string]string{"vid1": "some transcript text"},
	}
	remote := &fakeUploader{failUploads: true}
	store := newTestStore(t)
	c := New(scraper, remote, store, t.TempDir(), "youtube_transcripts")

	rep, err := c.Run(context.Background(), "https://www.youtube.com/@ch", 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Failed != 1 || rep.Ingested != 0 {
		t.Errorf("report = %+v", rep)
	}
	if store.IndexSize() != 0 {
		t.Errorf("index size = %d, want 0 after failed upload", store.IndexSize())
	}
	if len(store.Costs()) != 0 {
		t.Errorf("cost events = %d, want 0 after failed upload", len(store.Costs()))
	}

	// A retry after the failure clears must re-attempt the upload.
	remote.failUploads = false
	rep, err = c.Run(context.Background(), "https://www.youtube.com/@ch", 10)
	if err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if rep.Ingested != 1 {
		t.Errorf("retry report = %+v", rep)
	}
}

func TestEnsureStoreReusesCachedID(t *testing.T) {
	remote := &fakeUploader{}
	store := newTestStore(t)
	c := New(&fakeScraper{}, remote, store, t.TempDir(), "youtube_transcripts")

	first, err := c.ensureStore(context.Background())
	if err != nil {
		t.Fatalf("ensureStore: %v", err)
	}
	second, err := c.ensureStore(context.Background())
	if err != nil {
		t.Fatalf("ensureStore: %v", err)
	}
	if first != second {
		t.Errorf("store IDs differ across calls: %q vs %q", first, second)
	}
	if remote.created != 1 {
		t.Errorf("CreateStore called %d times, want 1", remote.created)
	}
}

func TestEnsureStoreReplacesStaleEntry(t *testing.T) {
	remote := &fakeUploader{}
	store := newTestStore(t)
	if err := store.PutStoreEntry("youtube_transcripts", storage.StoreEntry{
		StoreID: "fileSearchStores/deleted-remotely",
	}); err != nil {
		t.Fatal(err)
	}
	c := New(&fakeScraper{}, remote, store, t.TempDir(), "youtube_transcripts")

	id, err := c.ensureStore(context.Background())
	if err != nil {
		t.Fatalf("ensureStore: %v", err)
	}
	if id == "fileSearchStores/deleted-remotely" {
		t.Error("stale store ID was reused")
	}
	if remote.created != 1 {
		t.Errorf("CreateStore called %d times, want 1", remote.created)
	}
	entry, ok := store.StoreEntry("youtube_transcripts")
	if !ok || entry.StoreID != id {
		t.Errorf("cache entry = %+v, want StoreID %q", entry, id)
	}
}

func TestRunRespectsLimit(t *testing.T) {
	scraper := &fakeScraper{
		videos: testVideos(),
		transcripts: map[string]string{
			"vid1": "one", "vid2": "two", "vid3": "three",
		},
	}
	store := newTestStore(t)
	c := New(scraper, &fakeUploader{}, store, t.TempDir(), "youtube_transcripts")

	rep, err := c.Run(context.Background(), "https://www.youtube.com/@ch", 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Found != 2 || rep.Ingested != 2 {
		t.Errorf("report = %+v", rep)
	}
	for _, id := range store.IndexedIDs() {
		if !strings.HasPrefix(id, "vid") {
			t.Errorf("unexpected indexed id %q", id)
		}
	}
}
