package document_test

import (
	"assemblydigest/internal/document"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "https://record.assembly.go.kr/assembly/viewer/minutes/download/pdf.do?id=54321", want: "pdf.do.pdf"},
		{raw: "https://example.com/files/minutes.pdf", want: "minutes.pdf"},
		{raw: "https://example.com/files/MINUTES.PDF", want: "MINUTES.PDF"},
		{raw: "https://example.com/files/minutes", want: "minutes.pdf"},
		{raw: "https://example.com/", want: "document.pdf"},
		{raw: "https://example.com", want: "document.pdf"},
		{raw: "::bad::", want: "document.pdf"},
	}

	for _, tt := range tests {
		if got := document.FilenameFromURL(tt.raw); got != tt.want {
			t.Fatalf("FilenameFromURL(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestDownloaderDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.pdf":
			_, _ = io.WriteString(w, "%PDF-1.7")
		case "/empty.pdf":
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	d := document.NewDownloader(discardLogger())

	data, err := d.Download(context.Background(), server.URL+"/ok.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(data) != "%PDF-1.7" {
		t.Fatalf("unexpected body: %q", data)
	}

	if _, err = d.Download(context.Background(), server.URL+"/empty.pdf"); !errors.Is(err, document.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}

	if _, err = d.Download(context.Background(), server.URL+"/missing.pdf"); err == nil {
		t.Fatalf("expected error for missing document")
	}
}

func TestUpstageParserParse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("document")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()

		content, _ := io.ReadAll(file)

		if header.Filename != "minutes.pdf" || string(content) != "%PDF" ||
			r.FormValue("output_formats") != `["text"]` ||
			r.FormValue("ocr") != "auto" ||
			r.FormValue("coordinates") != "false" ||
			r.FormValue("model") != "document-parse" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"content":{"text":"  제1차 본회의 회의록  ","html":""}}`)
	}))
	defer server.Close()

	p := document.NewUpstageParser(server.URL, "secret", discardLogger())

	text, err := p.Parse(context.Background(), []byte("%PDF"), "minutes.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if text != "제1차 본회의 회의록" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestUpstageParserErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "status", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "invalid json", status: http.StatusOK, body: `{"content":`},
		{name: "missing text", status: http.StatusOK, body: `{"content":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			p := document.NewUpstageParser(server.URL, "", discardLogger())
			if _, err := p.Parse(context.Background(), []byte("%PDF"), "a.pdf"); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestUpstageParserRejectsEmptyDocument(t *testing.T) {
	p := document.NewUpstageParser("http://127.0.0.1:1", "", discardLogger())

	if _, err := p.Parse(context.Background(), nil, "a.pdf"); !errors.Is(err, document.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

type stubFetcher struct {
	mu    sync.Mutex
	data  []byte
	err   error
	calls int
}

func (s *stubFetcher) Download(context.Context, string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	return s.data, s.err
}

type stubParser struct {
	text     string
	err      error
	calls    int
	filename string
}

func (s *stubParser) Parse(_ context.Context, _ []byte, filename string) (string, error) {
	s.calls++
	s.filename = filename

	return s.text, s.err
}

func TestLoaderTextCachesParsedText(t *testing.T) {
	fetcher := &stubFetcher{data: []byte("%PDF")}
	parser := &stubParser{text: "회의록"}
	loader := document.NewLoader(fetcher, parser, discardLogger())

	for range 2 {
		if text := loader.Text(context.Background(), "https://example.com/a"); text != "회의록" {
			t.Fatalf("unexpected text: %q", text)
		}
	}

	if fetcher.calls != 1 || parser.calls != 1 {
		t.Fatalf("expected a single download and parse, got %d and %d", fetcher.calls, parser.calls)
	}

	if parser.filename != "a.pdf" {
		t.Fatalf("unexpected filename: %q", parser.filename)
	}
}

func TestLoaderTextFailuresYieldEmptyText(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *stubFetcher
		parser  *stubParser
		url     string
	}{
		{name: "blank url", fetcher: &stubFetcher{}, parser: &stubParser{}, url: " "},
		{name: "download error", fetcher: &stubFetcher{err: errors.New("boom")}, parser: &stubParser{}, url: "u"},
		{name: "parse error", fetcher: &stubFetcher{data: []byte("x")}, parser: &stubParser{err: errors.New("boom")}, url: "u"},
		{name: "empty text", fetcher: &stubFetcher{data: []byte("x")}, parser: &stubParser{}, url: "u"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := document.NewLoader(tt.fetcher, tt.parser, discardLogger())

			if text := loader.Text(context.Background(), tt.url); text != "" {
				t.Fatalf("expected empty text, got %q", text)
			}
		})
	}
}

func TestLoaderDoesNotCacheFailures(t *testing.T) {
	fetcher := &stubFetcher{data: []byte("x")}
	parser := &stubParser{err: errors.New("boom")}
	loader := document.NewLoader(fetcher, parser, discardLogger())

	loader.Text(context.Background(), "u")

	parser.err = nil
	parser.text = "본문"

	if text := loader.Text(context.Background(), "u"); text != "본문" {
		t.Fatalf("expected retry after failure, got %q", text)
	}
}
