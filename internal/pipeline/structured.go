package pipeline

import (
	"context"
	"log/slog"

	"assemblydigest/internal/domain"
	"assemblydigest/internal/llm"
)

const (
	// PlaceholderTopic stands in for a missing topic list.
	PlaceholderTopic = "회의 진행 및 안건 논의"
	MaxTopics        = 5
)

var topicsSchema = llm.ListSchema{
	Name:            "discussion_items",
	Field:           "discussion_items",
	Description:     "회의에서 논의된 주요 사항 목록 (중요도 순)",
	ItemDescription: "10글자 내외의 논의사항",
	MinItems:        1,
	MaxItems:        MaxTopics,
}

func (p *Pipeline) extractTopicsFromChunks(
	ctx context.Context,
	log *slog.Logger,
	chunks []domain.Chunk,
	title string,
) []string {
	lists := mapChunks(ctx, log, p.opts.MapConcurrency, chunks,
		func(ctx context.Context, chunk domain.Chunk) []string {
			return p.extractChunkTopics(ctx, log, chunk, title)
		})

	return MergeTopics(lists)
}

// extractChunkTopics returns nil when the chunk failed and the placeholder
// when the model found nothing.
func (p *Pipeline) extractChunkTopics(
	ctx context.Context,
	log *slog.Logger,
	chunk domain.Chunk,
	title string,
) []string {
	items, err := llm.ExtractList(ctx, p.extractor, topicsSystemPrompt, topicsUserPrompt(title, chunk), topicsSchema)
	if err != nil {
		log.ErrorContext(ctx, "Failed to extract chunk topics",
			"error", err,
			"chunk", chunk.Index,
			"total", chunk.Total)
		return nil
	}

	if len(items) == 0 {
		return []string{PlaceholderTopic}
	}

	return items
}

// MergeTopics concatenates per-chunk lists in order, keeps the first
// occurrence of every topic and caps the result at MaxTopics. An empty result
// becomes the placeholder, so the result always has one to five entries.
func MergeTopics(lists [][]string) []string {
	seen := make(map[string]struct{}, MaxTopics)
	merged := make([]string, 0, MaxTopics)

	for _, list := range lists {
		for _, topic := range list {
			if len(merged) == MaxTopics {
				return merged
			}

			if _, ok := seen[topic]; ok || topic == "" {
				continue
			}

			seen[topic] = struct{}{}
			merged = append(merged, topic)
		}
	}

	if len(merged) == 0 {
		return []string{PlaceholderTopic}
	}

	return merged
}
