// Package docs implements document handling: fetching attachments to
// temporary files, extracting their text, and processing them into a
// session document store.
package docs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

const defaultMaxDownloadBytes = 25 << 20 // 25 MiB

// HTTPDownloader fetches remote documents to local temporary files.
type HTTPDownloader struct {
	client   *http.Client
	maxBytes int64
	logger   *zap.Logger
}

// NewHTTPDownloader creates a downloader. maxBytes caps the downloaded
// size; zero applies the default cap.
func NewHTTPDownloader(timeout time.Duration, maxBytes int64, logger *zap.Logger) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxDownloadBytes
	}
	return &HTTPDownloader{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Fetch downloads url to a temporary file and returns its path. The
// caller owns removal of the file.
func (d *HTTPDownloader) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected download status: %s", resp.Status)
	}

	tmp, err := os.CreateTemp("", "polichat-doc-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(tmp, io.LimitReader(resp.Body, d.maxBytes+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > d.maxBytes {
		err = fmt.Errorf("document exceeds %d byte limit", d.maxBytes)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	d.logger.Debug("document downloaded",
		zap.String("url", url),
		zap.Int64("bytes", written),
		zap.String("path", tmp.Name()))
	return tmp.Name(), nil
}
