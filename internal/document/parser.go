package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultParseURL = "https://api.upstage.ai/v1/document-digitization"

	parseTimeout   = 5 * time.Minute
	parseModel     = "document-parse"
	maxParseErrLen = 512
	// maxParseResponseBytes bounds the parsed text of one document.
	maxParseResponseBytes = 64 << 20
)

// UpstageParser converts documents to plain text with the Upstage document
// parse API.
type UpstageParser struct {
	url              string
	apiKey           string
	client           *http.Client
	maxResponseBytes int
	log              *slog.Logger
}

func NewUpstageParser(url, apiKey string, log *slog.Logger) *UpstageParser {
	if strings.TrimSpace(url) == "" {
		url = DefaultParseURL
	}

	return &UpstageParser{
		url:              url,
		apiKey:           apiKey,
		client:           &http.Client{Timeout: parseTimeout},
		maxResponseBytes: maxParseResponseBytes,
		log:              log,
	}
}

func (p *UpstageParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}

	body, contentType, err := parseRequestBody(data, filename)
	if err != nil {
		return "", fmt.Errorf("build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			p.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"operation", "Parse")
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, int64(p.maxResponseBytes)+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if len(raw) > p.maxResponseBytes {
		return "", fmt.Errorf("read body: response exceeds %d bytes", p.maxResponseBytes)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("do request: unexpected status: %d: %s",
			resp.StatusCode, truncate(string(raw), maxParseErrLen))
	}

	if !gjson.ValidBytes(raw) {
		return "", errors.New("parse response: invalid JSON")
	}

	text := gjson.GetBytes(raw, "content.text")
	if !text.Exists() {
		return "", errors.New("parse response: content.text is missing")
	}

	return strings.TrimSpace(text.String()), nil
}

func parseRequestBody(data []byte, filename string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}

	if _, err = part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}

	fields := []struct{ name, value string }{
		{"output_formats", `["text"]`},
		{"ocr", "auto"},
		{"coordinates", "false"},
		{"model", parseModel},
	}
	for _, f := range fields {
		if err = w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	if err = w.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
