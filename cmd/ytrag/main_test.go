package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/ytrag/internal/genai"
	"github.com/kalambet/ytrag/internal/scrape"
	"github.com/kalambet/ytrag/internal/storage"
)

type recordingScraper struct {
	videos     []scrape.Video
	listCalls  int
	fetchCalls int
}

func (s *recordingScraper) ListVideos(ctx context.Context, channelURL string, n int) ([]scrape.Video, error) {
	s.listCalls++
	if n < len(s.videos) {
		return s.videos[:n], nil
	}
	return s.videos, nil
}

func (s *recordingScraper) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	s.fetchCalls++
	return "transcript for " + videoID, nil
}

type recordingUploader struct {
	createCalls int
	uploadCalls int
}

func (u *recordingUploader) CreateStore(ctx context.Context, displayName string) (genai.Store, error) {
	u.createCalls++
	return genai.Store{Name: "fileSearchStores/new", DisplayName: displayName}, nil
}

func (u *recordingUploader) GetStore(ctx context.Context, name string) (genai.Store, error) {
	return genai.Store{Name: name}, nil
}

func (u *recordingUploader) Upload(ctx context.Context, storeName, path string) (string, error) {
	u.uploadCalls++
	return "files/doc-1", nil
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestResolveIndexSkipScrapingUsesCache(t *testing.T) {
	store := newTestStore(t)
	if err := store.PutStoreEntry("youtube_transcripts", storage.StoreEntry{
		StoreID:     "fileSearchStores/cached",
		DisplayName: "youtube_transcripts",
		CreatedAt:   time.Now(),
	}); err != nil {
		t.Fatalf("PutStoreEntry: %v", err)
	}
	scraper := &recordingScraper{videos: []scrape.Video{{VideoID: "v1", Title: "one"}}}
	remote := &recordingUploader{}

	storeID, err := resolveIndex(context.Background(), scraper, remote, store, t.TempDir(), "youtube_transcripts", "", 5, true)
	if err != nil {
		t.Fatalf("resolveIndex: %v", err)
	}
	if storeID != "fileSearchStores/cached" {
		t.Errorf("storeID = %q, want cached store", storeID)
	}
	if scraper.listCalls != 0 || scraper.fetchCalls != 0 {
		t.Errorf("scraper called under skip-scraping: list=%d fetch=%d", scraper.listCalls, scraper.fetchCalls)
	}
	if remote.createCalls != 0 || remote.uploadCalls != 0 {
		t.Errorf("uploader called under skip-scraping: create=%d upload=%d", remote.createCalls, remote.uploadCalls)
	}
}

func TestResolveIndexSkipScrapingWithoutCacheFails(t *testing.T) {
	store := newTestStore(t)
	scraper := &recordingScraper{}

	_, err := resolveIndex(context.Background(), scraper, &recordingUploader{}, store, t.TempDir(), "youtube_transcripts", "", 5, true)
	if err == nil {
		t.Fatal("expected error when nothing has been indexed")
	}
	if !strings.Contains(err.Error(), "--skip-scraping") {
		t.Errorf("error %q should point at --skip-scraping", err)
	}
	if scraper.listCalls != 0 {
		t.Errorf("scraper called %d times, want 0", scraper.listCalls)
	}
}

func TestResolveIndexEmptyListingFallsBackToCache(t *testing.T) {
	store := newTestStore(t)
	if err := store.PutStoreEntry("youtube_transcripts", storage.StoreEntry{
		StoreID:     "fileSearchStores/earlier",
		DisplayName: "youtube_transcripts",
		CreatedAt:   time.Now(),
	}); err != nil {
		t.Fatalf("PutStoreEntry: %v", err)
	}
	scraper := &recordingScraper{} // channel lists nothing

	storeID, err := resolveIndex(context.Background(), scraper, &recordingUploader{}, store, t.TempDir(), "youtube_transcripts", "https://www.youtube.com/@c", 5, false)
	if err != nil {
		t.Fatalf("resolveIndex: %v", err)
	}
	if storeID != "fileSearchStores/earlier" {
		t.Errorf("storeID = %q, want store from earlier run", storeID)
	}
	if scraper.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1", scraper.listCalls)
	}
}

func TestResolveIndexEmptyListingWithoutCacheFails(t *testing.T) {
	store := newTestStore(t)
	scraper := &recordingScraper{}

	_, err := resolveIndex(context.Background(), scraper, &recordingUploader{}, store, t.TempDir(), "youtube_transcripts", "https://www.youtube.com/@c", 5, false)
	if err == nil {
		t.Fatal("expected error when the channel lists nothing and no store exists")
	}
}
