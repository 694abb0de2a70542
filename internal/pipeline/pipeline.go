package pipeline

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"assemblydigest/internal/chunker"
	"assemblydigest/internal/domain"
	"assemblydigest/internal/llm"

	"github.com/oklog/ulid/v2"
)

const (
	DefaultMapConcurrency = 4

	partialSeparator = "\n\n"
	// Models answer with an apology instead of an error when they refuse.
	refusalPrefix = "죄송합니다"
)

var errRefused = errors.New("model refused the request")

type Options struct {
	// MaxChunkLength is the chunk size in runes. Zero means
	// chunker.DefaultMaxLength.
	MaxChunkLength int
	// MapConcurrency bounds in-flight map requests per reducer.
	MapConcurrency int
}

// TextLoader turns a document URL into plain text. It returns "" when the
// document cannot be loaded.
type TextLoader interface {
	Text(ctx context.Context, url string) string
}

// Pipeline analyses long documents by splitting them into chunks, extracting
// from every chunk concurrently and reducing the per-chunk results.
type Pipeline struct {
	extractor llm.Extractor
	opts      Options

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy

	log *slog.Logger
}

func New(extractor llm.Extractor, opts Options, log *slog.Logger) *Pipeline {
	if opts.MaxChunkLength <= 0 {
		opts.MaxChunkLength = chunker.DefaultMaxLength
	}
	if opts.MapConcurrency <= 0 {
		opts.MapConcurrency = DefaultMapConcurrency
	}

	return &Pipeline{
		extractor: extractor,
		opts:      opts,
		entropy:   ulid.Monotonic(rand.Reader, 0),
		log:       log,
	}
}

// Run produces the summary and then the topics of text. It never fails: any
// failure degrades to an empty analysis or a partial one.
func (p *Pipeline) Run(ctx context.Context, text, title string) domain.Analysis {
	return p.run(ctx, text, title, false)
}

// RunJoint is Run with both reductions executed concurrently.
func (p *Pipeline) RunJoint(ctx context.Context, text, title string) domain.Analysis {
	return p.run(ctx, text, title, true)
}

// AnalyzeDocument loads the document at url and runs the joint analysis over
// its text.
func (p *Pipeline) AnalyzeDocument(
	ctx context.Context,
	loader TextLoader,
	url string,
	title string,
) domain.Analysis {
	url = strings.TrimSpace(url)
	if url == "" {
		p.log.WarnContext(ctx, "Document URL is empty, skipping analysis", "title", title)
		return domain.Analysis{}
	}

	text := loader.Text(ctx, url)
	if strings.TrimSpace(text) == "" {
		p.log.WarnContext(ctx, "Document text is empty, skipping analysis",
			"title", title,
			"url", url)
		return domain.Analysis{}
	}

	return p.RunJoint(ctx, text, title)
}

// Summarize returns the narrative summary of text, or "" when nothing could
// be summarized.
func (p *Pipeline) Summarize(ctx context.Context, text, title string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	log := p.runLogger(title)
	chunks := chunker.Split(text, p.opts.MaxChunkLength)

	var summary string
	if r := protect(func() { summary = p.summarizeChunks(ctx, log, chunks, title) }); r != nil {
		log.ErrorContext(ctx, "Recovered from panic while summarizing", "panic", r)
		return ""
	}

	return summary
}

// ExtractTopics returns between one and five discussion topics of text.
func (p *Pipeline) ExtractTopics(ctx context.Context, text, title string) []string {
	if strings.TrimSpace(text) == "" {
		return MergeTopics(nil)
	}

	log := p.runLogger(title)
	chunks := chunker.Split(text, p.opts.MaxChunkLength)

	var topics []string
	if r := protect(func() { topics = p.extractTopicsFromChunks(ctx, log, chunks, title) }); r != nil {
		log.ErrorContext(ctx, "Recovered from panic while extracting topics", "panic", r)
		return MergeTopics(nil)
	}

	return topics
}

func (p *Pipeline) run(ctx context.Context, text, title string, joint bool) (analysis domain.Analysis) {
	log := p.runLogger(title)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Recovered from panic in analysis run", "panic", r)
			analysis = domain.Analysis{}
		}
	}()

	if strings.TrimSpace(text) == "" {
		log.WarnContext(ctx, "Document text is empty, skipping analysis")
		return domain.Analysis{}
	}

	chunks := chunker.Split(text, p.opts.MaxChunkLength)

	log.InfoContext(ctx, "Analysis run is started",
		"chunks", len(chunks),
		"textLength", utf8.RuneCountInString(text),
		"joint", joint)

	var (
		summary      string
		topics       []string
		summaryPanic any
		topicsPanic  any
	)

	summarize := func() {
		summaryPanic = protect(func() { summary = p.summarizeChunks(ctx, log, chunks, title) })
	}
	extract := func() {
		topicsPanic = protect(func() { topics = p.extractTopicsFromChunks(ctx, log, chunks, title) })
	}

	if joint {
		var wg sync.WaitGroup
		wg.Go(summarize)
		wg.Go(extract)
		wg.Wait()
	} else {
		summarize()
		extract()
	}

	if summaryPanic != nil || topicsPanic != nil {
		log.ErrorContext(ctx, "Recovered from panic in analysis run",
			"summaryPanic", summaryPanic,
			"topicsPanic", topicsPanic)
		return domain.Analysis{}
	}

	log.InfoContext(ctx, "Analysis run is finished",
		"summaryLength", utf8.RuneCountInString(summary),
		"topics", len(topics))

	return domain.Analysis{Summary: summary, Topics: topics}
}

func (p *Pipeline) runLogger(title string) *slog.Logger {
	p.entropyMu.Lock()
	id := ulid.MustNew(ulid.Now(), p.entropy)
	p.entropyMu.Unlock()

	return p.log.With("runID", id.String(), "title", title)
}

// extractText sends a free-text contract and treats blank or refusing
// answers as failures.
func (p *Pipeline) extractText(ctx context.Context, contract llm.Contract) (string, error) {
	out, err := p.extractor.Extract(ctx, contract)
	if err != nil {
		return "", err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty output", llm.ErrExtractionFailed)
	}
	if strings.HasPrefix(out, refusalPrefix) {
		return "", fmt.Errorf("%w: %w", llm.ErrExtractionFailed, errRefused)
	}

	return out, nil
}

// mapChunks applies fn to every chunk with a bounded worker pool. Results are
// stored at the chunk position; a panicking unit leaves the zero value.
func mapChunks[T any](
	ctx context.Context,
	log *slog.Logger,
	workers int,
	chunks []domain.Chunk,
	fn func(ctx context.Context, chunk domain.Chunk) T,
) []T {
	results := make([]T, len(chunks))
	if len(chunks) == 0 {
		return results
	}

	workerCount := min(max(workers, 1), len(chunks))

	type task struct {
		resultIndex int
		chunk       domain.Chunk
	}

	tasks := make(chan task)
	var wg sync.WaitGroup

	for range workerCount {
		wg.Go(func() {
			for t := range tasks {
				if r := protect(func() { results[t.resultIndex] = fn(ctx, t.chunk) }); r != nil {
					log.ErrorContext(ctx, "Recovered from panic in chunk extraction",
						"panic", r,
						"chunk", t.chunk.Index)
				}
			}
		})
	}

	for i := range chunks {
		tasks <- task{
			resultIndex: i,
			chunk:       chunks[i],
		}
	}

	close(tasks)
	wg.Wait()

	return results
}

func protect(f func()) (recovered any) {
	defer func() {
		recovered = recover()
	}()

	f()

	return nil
}
