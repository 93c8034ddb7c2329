package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/ytrag/internal/costs"
	"github.com/kalambet/ytrag/internal/genai"
	"github.com/kalambet/ytrag/internal/scrape"
	"github.com/kalambet/ytrag/internal/storage"
)

// Scraper lists a channel's videos and fetches their transcripts.
type Scraper interface {
	ListVideos(ctx context.Context, channelURL string, n int) ([]scrape.Video, error)
	FetchTranscript(ctx context.Context, videoID string) (string, error)
}

// Uploader manages the remote search store and document uploads.
type Uploader interface {
	CreateStore(ctx context.Context, displayName string) (genai.Store, error)
	GetStore(ctx context.Context, name string) (genai.Store, error)
	Upload(ctx context.Context, storeName, path string) (string, error)
}

// Report summarizes one ingestion pass over a channel.
type Report struct {
	Found            int
	Ingested         int
	Skipped          int
	NoTranscript     int
	Failed           int
	EstimatedTokens  int
	EstimatedCostUSD float64
	StoreID          string
}

// Coordinator drives scrape -> save -> upload -> record for a channel,
// skipping videos already present in the local index cache.
type Coordinator struct {
	scraper       Scraper
	remote        Uploader
	store         *storage.Store
	transcriptDir string
	storeKey      string
	logger        *slog.Logger
}

func New(scraper Scraper, remote Uploader, store *storage.Store, transcriptDir, storeKey string) *Coordinator {
	return &Coordinator{
		scraper:       scraper,
		remote:        remote,
		store:         store,
		transcriptDir: transcriptDir,
		storeKey:      storeKey,
		logger:        slog.Default(),
	}
}

// Run ingests up to n videos from the channel. Per-video failures are
// recorded in the report and do not abort the pass; only listing and
// store-provisioning errors are fatal.
func (c *Coordinator) Run(ctx context.Context, channelURL string, n int) (Report, error) {
	var rep Report

	videos, err := c.scraper.ListVideos(ctx, channelURL, n)
	if err != nil {
		return rep, fmt.Errorf("listing channel videos: %w", err)
	}
	rep.Found = len(videos)
	if len(videos) == 0 {
		return rep, nil
	}

	storeID, err := c.ensureStore(ctx)
	if err != nil {
		return rep, err
	}
	rep.StoreID = storeID

	if err := os.MkdirAll(c.transcriptDir, 0o755); err != nil {
		return rep, fmt.Errorf("creating transcript dir: %w", err)
	}

	for _, v := range videos {
		if _, ok := c.store.IndexEntry(v.VideoID); ok {
			c.logger.Debug("already indexed, skipping", "video_id", v.VideoID)
			rep.Skipped++
			continue
		}
		if err := c.ingestVideo(ctx, storeID, v, &rep); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return rep, err
			}
			c.logger.Warn("video ingest failed", "video_id", v.VideoID, "error", err)
			rep.Failed++
		}
	}
	return rep, nil
}

func (c *Coordinator) ingestVideo(ctx context.Context, storeID string, v scrape.Video, rep *Report) error {
	transcript, err := c.scraper.FetchTranscript(ctx, v.VideoID)
	if err != nil {
		if errors.Is(err, scrape.ErrNoTranscript) {
			c.logger.Info("no transcript available", "video_id", v.VideoID, "title", v.Title)
			rep.NoTranscript++
			return nil
		}
		return fmt.Errorf("fetching transcript: %w", err)
	}

	path, err := scrape.SaveTranscript(c.transcriptDir, v, transcript)
	if err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}

	docName, err := c.remote.Upload(ctx, storeID, path)
	if err != nil {
		// The index cache stays unwritten so a retry re-uploads.
		return fmt.Errorf("uploading transcript: %w", err)
	}

	if err := c.store.PutIndexEntry(v.VideoID, storage.IndexEntry{
		DocName:    docName,
		Title:      v.Title,
		UploadedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("recording index entry: %w", err)
	}

	tokens := costs.EstimateTokens(transcript)
	cost := costs.IndexingCost(tokens)
	if err := c.store.AppendCost(storage.CostEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Kind:      storage.KindIndex,
		Tokens:    tokens,
		CostUSD:   cost,
		Metadata:  map[string]string{"video_id": v.VideoID, "title": v.Title},
	}); err != nil {
		return fmt.Errorf("recording indexing cost: %w", err)
	}

	rep.Ingested++
	rep.EstimatedTokens += tokens
	rep.EstimatedCostUSD += cost
	c.logger.Info("ingested video", "video_id", v.VideoID, "tokens", tokens)
	return nil
}

// ensureStore resolves the shared remote store, creating it on first use.
// A cached store ID is verified against the remote before reuse; a stale
// entry is replaced transparently.
func (c *Coordinator) ensureStore(ctx context.Context) (string, error) {
	if entry, ok := c.store.StoreEntry(c.storeKey); ok {
		if _, err := c.remote.GetStore(ctx, entry.StoreID); err == nil {
			return entry.StoreID, nil
		}
		c.logger.Warn("cached store no longer exists, creating a new one", "store_id", entry.StoreID)
	}

	remote, err := c.remote.CreateStore(ctx, c.storeKey)
	if err != nil {
		return "", fmt.Errorf("creating search store: %w", err)
	}
	if err := c.store.PutStoreEntry(c.storeKey, storage.StoreEntry{
		StoreID:     remote.Name,
		DisplayName: remote.DisplayName,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("recording store entry: %w", err)
	}
	return remote.Name, nil
}
