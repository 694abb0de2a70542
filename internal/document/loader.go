package document

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

type Fetcher interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

type Parser interface {
	Parse(ctx context.Context, data []byte, filename string) (string, error)
}

// Loader composes download, parse and the parsed text cache. Failures are
// logged and reported as empty text.
type Loader struct {
	fetcher Fetcher
	parser  Parser
	cache   *textCache
	now     func() time.Time
	log     *slog.Logger
}

func NewLoader(fetcher Fetcher, parser Parser, log *slog.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		parser:  parser,
		cache:   newTextCache(textCacheMaxEntries),
		now:     time.Now,
		log:     log,
	}
}

func (l *Loader) Text(ctx context.Context, url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}

	if text, ok := l.cache.get(url, l.now()); ok {
		return text
	}

	data, err := l.fetcher.Download(ctx, url)
	if err != nil {
		l.log.ErrorContext(ctx, "Failed to download document",
			"error", err,
			"url", url)
		return ""
	}

	filename := FilenameFromURL(url)

	text, err := l.parser.Parse(ctx, data, filename)
	if err != nil {
		l.log.ErrorContext(ctx, "Failed to parse document",
			"error", err,
			"url", url,
			"filename", filename,
			"size", len(data))
		return ""
	}

	if text == "" {
		l.log.WarnContext(ctx, "Parsed document text is empty", "url", url)
		return ""
	}

	now := l.now()
	l.cache.set(url, text, now.Add(textCacheTTL), now)

	l.log.InfoContext(ctx, "Document is parsed",
		"url", url,
		"size", len(data),
		"textLength", utf8.RuneCountInString(text))

	return text
}
