package noaa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
)

// FileSource reads the bulletin from a local file, or from stdin when the
// path is "-". It implements reconcile.BulletinSource for offline imports.
type FileSource struct {
	path   string
	stdin  io.Reader
	logger *slog.Logger

	// stdin can only be read once; later fetches reuse the first result.
	once      sync.Once
	stdinText string
	stdinErr  error
}

// NewFileSource creates a source for path. stdin is only used for "-".
func NewFileSource(path string, stdin io.Reader, logger *slog.Logger) *FileSource {
	return &FileSource{path: path, stdin: stdin, logger: logger}
}

// FetchBulletin returns the file contents. Read failures wrap
// domain.ErrUpstreamUnavailable.
func (s *FileSource) FetchBulletin(_ context.Context) (string, error) {
	if s.path == "-" {
		s.once.Do(func() {
			s.stdinText, s.stdinErr = readBulletin(s.stdin, "stdin")
		})
		return s.stdinText, s.stdinErr
	}

	f, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer f.Close()

	text, err := readBulletin(f, s.path)
	if err != nil {
		return "", err
	}
	s.logger.Debug("bulletin read", "path", s.path, "bytes", len(text))
	return text, nil
}

func readBulletin(r io.Reader, name string) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBulletinBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", domain.ErrUpstreamUnavailable, name, err)
	}
	return string(body), nil
}
