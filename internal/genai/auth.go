package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrUnauthenticated means no usable credential was found. Fatal: the
// process cannot establish a remote session without one.
var ErrUnauthenticated = errors.New("no usable Gemini credentials")

const apiKeyEnv = "GEMINI_API_KEY"

// Seams for tests.
var (
	getenv            = os.Getenv
	gcloudAccessToken = defaultGcloudAccessToken
)

// Authenticate builds a verified client. GEMINI_API_KEY wins when set and
// working; otherwise gcloud application-default credentials are tried. An
// empty baseURL means the production endpoint.
func Authenticate(ctx context.Context, baseURL string) (*Client, error) {
	if key := getenv(apiKeyEnv); key != "" {
		c := NewClient(key)
		if baseURL != "" {
			c.SetBaseURL(baseURL)
		}
		if err := c.verify(ctx); err == nil {
			slog.Info("authenticated", "method", "api_key")
			return c, nil
		} else {
			slog.Warn("GEMINI_API_KEY set but not usable, trying gcloud", "error", err)
		}
	}

	token, err := gcloudAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: set %s or run `gcloud auth application-default login` (%v)",
			ErrUnauthenticated, apiKeyEnv, err)
	}

	c := NewBearerClient(token)
	if baseURL != "" {
		c.SetBaseURL(baseURL)
	}
	if err := c.verify(ctx); err != nil {
		return nil, fmt.Errorf("%w: gcloud credentials rejected by the API (%v)", ErrUnauthenticated, err)
	}
	slog.Info("authenticated", "method", "gcloud_adc")
	return c, nil
}

// verify probes connectivity by listing models.
func (c *Client) verify(ctx context.Context) error {
	models, err := c.ListModels(ctx)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return errors.New("model list is empty")
	}
	return nil
}

func defaultGcloudAccessToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "gcloud", "auth", "application-default", "print-access-token").Output()
	if err != nil {
		return "", fmt.Errorf("gcloud application-default credentials not available: %w", err)
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", errors.New("gcloud returned an empty token")
	}
	return token, nil
}
