// Package genai is a thin client for the Gemini File Search API: store
// management, file upload, and grounded generation. Retrieval and ranking
// happen entirely on the vendor side.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultUploadURL = "https://generativelanguage.googleapis.com/upload/v1beta"
	defaultTimeout   = 60 * time.Second
	uploadTimeout    = 300 * time.Second
	maxRetries       = 3
	initialBackoff   = 500 * time.Millisecond
)

// Client communicates with the Gemini API using either an API key or a
// bearer token from gcloud application-default credentials.
type Client struct {
	apiKey      string
	accessToken string
	baseURL     string
	uploadURL   string
	httpClient  *http.Client
}

// NewClient creates a client authenticated with an API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		uploadURL:  defaultUploadURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// NewBearerClient creates a client authenticated with an OAuth access token.
func NewBearerClient(token string) *Client {
	c := NewClient("")
	c.accessToken = token
	return c
}

// SetBaseURL points the client at a custom endpoint (tests, proxies). The
// upload endpoint follows the same base.
func (c *Client) SetBaseURL(base string) {
	base = strings.TrimRight(base, "/")
	c.baseURL = base
	c.uploadURL = base
}

// Store is a File Search store resource.
type Store struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
}

// GenerateResult is the answer to one grounded query.
type GenerateResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Model is one entry from the models list.
type Model struct {
	Name string `json:"name"`
}

// ListModels returns the available models. Also used as the connectivity
// probe during authentication.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var resp struct {
		Models []Model `json:"models"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/models", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// CreateStore creates a new File Search store.
func (c *Client) CreateStore(ctx context.Context, displayName string) (Store, error) {
	req := map[string]string{"displayName": displayName}
	var store Store
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/fileSearchStores", req, &store); err != nil {
		return Store{}, fmt.Errorf("creating store: %w", err)
	}
	return store, nil
}

// GetStore fetches a store by resource name, verifying it still exists.
func (c *Client) GetStore(ctx context.Context, name string) (Store, error) {
	var store Store
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/"+name, nil, &store); err != nil {
		return Store{}, fmt.Errorf("getting store %s: %w", name, err)
	}
	return store, nil
}

// DeleteStore deletes a store and everything in it.
func (c *Client) DeleteStore(ctx context.Context, name string) error {
	if err := c.doJSON(ctx, http.MethodDelete, c.baseURL+"/"+name+"?force=true", nil, nil); err != nil {
		return fmt.Errorf("deleting store %s: %w", name, err)
	}
	return nil
}

// Upload imports a local file into a File Search store and returns the
// document resource name.
func (c *Client) Upload(ctx context.Context, storeName, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	metaHeader := make(map[string][]string)
	metaHeader["Content-Type"] = []string{"application/json; charset=UTF-8"}
	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return "", err
	}
	meta := map[string]string{"displayName": filepath.Base(path)}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return "", err
	}

	filePart, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(filePart, f); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	url := c.uploadURL + "/" + storeName + ":uploadToFileSearchStore"
	reqCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	return result.Name, nil
}

// Generate answers a prompt with the store attached as a file-search tool.
func (c *Client) Generate(ctx context.Context, model, prompt, storeName string) (*GenerateResult, error) {
	req := map[string]any{
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": prompt}},
			},
		},
		"tools": []map[string]any{
			{
				"fileSearch": map[string]any{
					"fileSearchStoreNames": []string{storeName},
				},
			},
		},
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}

	url := c.baseURL + "/models/" + model + ":generateContent"
	if err := c.doJSON(ctx, http.MethodPost, url, req, &resp); err != nil {
		return nil, fmt.Errorf("generating: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("generating: empty candidate list")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return &GenerateResult{
		Text:         text.String(),
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	_, ok := err.(*rateLimitError)
	return ok
}

// doJSON performs a JSON request with bounded retries and exponential
// backoff on 429s.
func (c *Client) doJSON(ctx context.Context, method, url string, reqBody, respBody any) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}

	var lastErr error
	for attempt := range maxRetries {
		err := c.doOnce(ctx, method, url, payload, respBody)
		if err == nil {
			return nil
		}
		if !isRateLimit(err) {
			return err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, url string, payload []byte, respBody any) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
		return
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
}
