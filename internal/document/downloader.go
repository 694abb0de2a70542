package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	downloadTimeout     = 5 * time.Minute
	maxDocumentBytes    = 100 << 20
	defaultFilename     = "document.pdf"
	pdfExtension        = ".pdf"
	downloaderUserAgent = "assemblydigest/1.0"
)

var ErrEmptyDocument = errors.New("document is empty")

// Downloader fetches source documents over HTTP.
type Downloader struct {
	client *http.Client
	log    *slog.Logger
}

func NewDownloader(log *slog.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: downloadTimeout},
		log:    log,
	}
}

func (d *Downloader) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", downloaderUserAgent)

	resp, err := d.client.Do(req) //nolint:gosec // document URLs come from the Assembly API
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", rawURL,
				"operation", "Download")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("read body: document exceeds %d bytes", maxDocumentBytes)
	}

	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	return data, nil
}

// FilenameFromURL returns the last path segment of rawURL with a .pdf
// extension, or document.pdf when there is none.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return defaultFilename
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return defaultFilename
	}

	if !strings.HasSuffix(strings.ToLower(name), pdfExtension) {
		name += pdfExtension
	}

	return name
}
