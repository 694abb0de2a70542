package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"assemblydigest/internal/domain"
	"assemblydigest/internal/llm"
)

func (p *Pipeline) summarizeChunks(
	ctx context.Context,
	log *slog.Logger,
	chunks []domain.Chunk,
	title string,
) string {
	partials := mapChunks(ctx, log, p.opts.MapConcurrency, chunks,
		func(ctx context.Context, chunk domain.Chunk) string {
			return p.summarizeChunk(ctx, log, chunk, title)
		})

	if len(partials) == 1 {
		return partials[0]
	}

	nonEmpty := make([]string, 0, len(partials))
	for _, partial := range partials {
		if partial != "" {
			nonEmpty = append(nonEmpty, partial)
		}
	}

	if len(nonEmpty) == 0 {
		log.WarnContext(ctx, "Every chunk summary failed", "chunks", len(chunks))
		return ""
	}

	joined := strings.Join(nonEmpty, partialSeparator)

	summary, err := p.extractText(ctx, llm.Contract{
		System: integrationSystemPrompt,
		User:   integrationUserPrompt(title, nonEmpty),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to integrate chunk summaries, using joined partials",
			"error", err,
			"partials", len(nonEmpty))
		return joined
	}

	return summary
}

func (p *Pipeline) summarizeChunk(
	ctx context.Context,
	log *slog.Logger,
	chunk domain.Chunk,
	title string,
) string {
	summary, err := p.extractText(ctx, llm.Contract{
		System: summarySystemPrompt,
		User:   summaryUserPrompt(title, chunk),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to summarize chunk",
			"error", err,
			"chunk", chunk.Index,
			"total", chunk.Total)
		return ""
	}

	return summary
}
