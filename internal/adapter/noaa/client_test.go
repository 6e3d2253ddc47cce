package noaa

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBulletin = `:Product: 27-day Space Weather Outlook Table 27DO.txt
#   UTC      Radio Flux   Planetary   Largest
2025 Jun 02     150           5          2
`

func testClient(url string, timeout time.Duration) *Client {
	return NewClient(url, timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_FetchBulletin_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/text/27-day-outlook.txt", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, testBulletin)
	}))
	defer srv.Close()

	text, err := testClient(srv.URL+"/text/27-day-outlook.txt", 5*time.Second).FetchBulletin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testBulletin, text)

	rows, err := domain.ParseBulletin(text)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestClient_FetchBulletin_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "maintenance")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).FetchBulletin(context.Background())
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "maintenance")
}

func TestClient_FetchBulletin_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(done)

	start := time.Now()
	_, err := testClient(srv.URL, 50*time.Millisecond).FetchBulletin(context.Background())
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_FetchBulletin_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testClient(url, time.Second).FetchBulletin(context.Background())
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestClient_FetchBulletin_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL, time.Second).FetchBulletin(ctx)
	require.Error(t, err)
}
