// Package scrape lists a YouTube channel's recent uploads and fetches their
// caption tracks over plain HTTP. It stands in for the scrape(channel, n)
// capability; no browser is involved.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrNoTranscript marks a video with no caption track. Per-video: the
// caller skips the video and continues.
var ErrNoTranscript = errors.New("no transcript available")

// Video is one channel listing entry.
type Video struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

const (
	defaultWatchBase = "https://www.youtube.com"
	userAgent        = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	maxPageSize      = 20 << 20 // 20MB; channel pages are large
)

// Client fetches and parses YouTube pages. All page fetches go through a
// shared rate limiter so repeated runs stay polite.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	watchBase  string
	logger     *slog.Logger
}

// Option customizes Client creation.
type Option func(*Client)

// WithBaseURL points watch-page and caption fetches at a custom host (tests).
func WithBaseURL(base string) Option {
	return func(c *Client) { c.watchBase = strings.TrimRight(base, "/") }
}

// WithRate sets the page-fetch rate in requests per second.
func WithRate(perSec float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSec), 1) }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client with a 30s request timeout and 1 req/s pacing.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		watchBase:  defaultWatchBase,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListVideos returns up to n videos from the channel's uploads page, in the
// channel's listing order (newest first).
func (c *Client) ListVideos(ctx context.Context, channelURL string, n int) ([]Video, error) {
	pageURL := videosPageURL(channelURL)
	c.logger.Debug("fetching channel page", "url", pageURL)

	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching channel page: %w", err)
	}

	videos, err := parseChannelVideos(body)
	if err != nil {
		return nil, fmt.Errorf("parsing channel page: %w", err)
	}
	for i := range videos {
		videos[i].URL = c.watchBase + "/watch?v=" + videos[i].VideoID
	}
	if len(videos) > n {
		videos = videos[:n]
	}
	c.logger.Debug("channel listing complete", "found", len(videos))
	return videos, nil
}

// FetchTranscript downloads and flattens the caption track for a video.
// English tracks are preferred; any track beats none.
func (c *Client) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	watchURL := c.watchBase + "/watch?v=" + videoID
	body, err := c.fetch(ctx, watchURL)
	if err != nil {
		return "", fmt.Errorf("fetching watch page: %w", err)
	}

	tracks, err := parseCaptionTracks(body)
	if err != nil {
		return "", fmt.Errorf("parsing watch page for %s: %w", videoID, err)
	}
	if len(tracks) == 0 {
		return "", fmt.Errorf("video %s: %w", videoID, ErrNoTranscript)
	}

	track := pickTrack(tracks)
	captions, err := c.fetch(ctx, track.BaseURL)
	if err != nil {
		return "", fmt.Errorf("fetching captions for %s: %w", videoID, err)
	}

	text, err := parseTimedText(captions)
	if err != nil {
		return "", fmt.Errorf("parsing captions for %s: %w", videoID, err)
	}
	if text == "" {
		return "", fmt.Errorf("video %s: %w", videoID, ErrNoTranscript)
	}
	return text, nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
}

// videosPageURL normalizes a channel URL to its uploads tab.
func videosPageURL(channelURL string) string {
	if strings.Contains(channelURL, "/videos") {
		return channelURL
	}
	return strings.TrimRight(channelURL, "/") + "/videos"
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// pickTrack prefers a manually-authored English track, then any English
// track, then whatever is first.
func pickTrack(tracks []captionTrack) captionTrack {
	var english *captionTrack
	for i, tr := range tracks {
		if !strings.HasPrefix(tr.LanguageCode, "en") {
			continue
		}
		if tr.Kind != "asr" {
			return tr
		}
		if english == nil {
			english = &tracks[i]
		}
	}
	if english != nil {
		return *english
	}
	return tracks[0]
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([\w-]+)`),
	regexp.MustCompile(`youtube\.com/embed/([\w-]+)`),
	regexp.MustCompile(`youtube\.com/v/([\w-]+)`),
}

// ExtractVideoID pulls the video ID out of any of the common watch URL
// shapes. Empty string when the URL does not look like a video link.
func ExtractVideoID(url string) string {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

var channelIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/channel/([\w-]+)`),
	regexp.MustCompile(`youtube\.com/@([\w-]+)`),
	regexp.MustCompile(`youtube\.com/c/([\w-]+)`),
	regexp.MustCompile(`youtube\.com/user/([\w-]+)`),
}

// ExtractChannelID pulls the channel handle or ID out of a channel URL.
// A bare name passes through unchanged.
func ExtractChannelID(channelURL string) string {
	for _, p := range channelIDPatterns {
		if m := p.FindStringSubmatch(channelURL); m != nil {
			return m[1]
		}
	}
	if !strings.Contains(channelURL, "/") {
		return channelURL
	}
	return ""
}
