package noaa

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileSource_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "27DO.txt")
	require.NoError(t, os.WriteFile(path, []byte(testBulletin), 0o600))

	text, err := NewFileSource(path, nil, discard()).FetchBulletin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testBulletin, text)

	rows, err := domain.ParseBulletin(text)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFileSource_MissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.txt"), nil, discard()).FetchBulletin(context.Background())
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileSource_StdinReadOnce(t *testing.T) {
	src := NewFileSource("-", strings.NewReader(testBulletin), discard())

	first, err := src.FetchBulletin(context.Background())
	require.NoError(t, err)
	second, err := src.FetchBulletin(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testBulletin, first)
	assert.Equal(t, first, second)
}
