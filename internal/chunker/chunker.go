package chunker

import (
	"slices"
	"strings"

	"assemblydigest/internal/domain"
)

// DefaultMaxLength is the chunk size used for Korean transcripts, whose token
// density per character is high.
const DefaultMaxLength = 80_000

var sentenceTerminators = []rune{'.', '!', '?', '。'}

// Split cuts text into chunks of at most maxLength runes, preferring to cut
// right after a sentence terminator, a newline or a space.
func Split(text string, maxLength int) []domain.Chunk {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	runes := []rune(text)
	if len(runes) <= maxLength {
		return []domain.Chunk{{
			Index: 1,
			Total: 1,
			Text:  strings.TrimSpace(text),
			Start: 0,
			End:   len(runes),
		}}
	}

	var chunks []domain.Chunk

	for start := 0; start < len(runes); {
		end := min(start+maxLength, len(runes))

		if end < len(runes) {
			if cut := cutPoint(runes, start, end); cut > start+maxLength/2 {
				end = cut + 1
			}
		}

		chunkText := strings.TrimSpace(string(runes[start:end]))
		if chunkText != "" {
			chunks = append(chunks, domain.Chunk{
				Text:  chunkText,
				Start: start,
				End:   end,
			})
		}

		start = end
	}

	if len(chunks) == 0 {
		return []domain.Chunk{{Index: 1, Total: 1, Start: 0, End: len(runes)}}
	}

	for i := range chunks {
		chunks[i].Index = i + 1
		chunks[i].Total = len(chunks)
	}

	return chunks
}

// cutPoint returns the index of the boundary character closest to end within
// [start, end), or -1.
func cutPoint(runes []rune, start, end int) int {
	lastTerminator := lastIndexFunc(runes, start, end, isSentenceTerminator)
	lastNewline := lastIndexFunc(runes, start, end, func(r rune) bool { return r == '\n' })
	lastSpace := lastIndexFunc(runes, start, end, func(r rune) bool { return r == ' ' })

	return max(lastTerminator, lastNewline, lastSpace)
}

func lastIndexFunc(runes []rune, start, end int, f func(rune) bool) int {
	for i := end - 1; i >= start; i-- {
		if f(runes[i]) {
			return i
		}
	}

	return -1
}

func isSentenceTerminator(r rune) bool {
	return slices.Contains(sentenceTerminators, r)
}
