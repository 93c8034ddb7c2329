package scrape

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	separators  = regexp.MustCompile(`[-\s]+`)
)

const titleLimit = 50

// TranscriptFilename builds the deterministic artifact name for a video, so
// re-scraping the same video lands on the same path.
func TranscriptFilename(v Video) string {
	safe := unsafeChars.ReplaceAllString(v.Title, "")
	safe = separators.ReplaceAllString(safe, "_")
	// Trim on rune boundaries; titles are not always ASCII.
	if r := []rune(safe); len(r) > titleLimit {
		safe = string(r[:titleLimit])
	}
	return fmt.Sprintf("%s_%s.txt", v.VideoID, safe)
}

// SaveTranscript writes the transcript artifact with its metadata header
// and returns the file path. An existing artifact for the same video is
// overwritten, never duplicated.
func SaveTranscript(dir string, v Video, transcript string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating transcript directory: %w", err)
	}

	path := filepath.Join(dir, TranscriptFilename(v))

	var b strings.Builder
	fmt.Fprintf(&b, "Video ID: %s\n", v.VideoID)
	fmt.Fprintf(&b, "Title: %s\n", v.Title)
	fmt.Fprintf(&b, "URL: %s\n", v.URL)
	b.WriteString(strings.Repeat("=", 80) + "\n\n")
	b.WriteString(transcript)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing transcript: %w", err)
	}
	return path, nil
}

// SavedTranscripts lists the transcript artifacts already on disk.
func SavedTranscripts(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
