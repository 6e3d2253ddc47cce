package noaa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
)

// maxBulletinBytes caps the body read; the real product is a few KB.
const maxBulletinBytes = 1 << 20

// Client downloads the 27-day outlook text from SWPC.
// It implements reconcile.BulletinSource.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a bulletin client. Every request is bounded by timeout.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchBulletin returns the raw bulletin text. Network errors, timeouts and
// non-200 responses wrap domain.ErrUpstreamUnavailable.
func (c *Client) FetchBulletin(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamUnavailable, resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBulletinBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", domain.ErrUpstreamUnavailable, err)
	}

	c.logger.Debug("bulletin fetched", "url", c.url, "bytes", len(body))
	return string(body), nil
}
