package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/docpilot/docpilot/model"
)

// Chunking strategies recommended by AnalyzeStructure.
const (
	StrategyParagraph = "paragraph"
	StrategySize      = "size"
)

// ChunkOptions configures the chunking behavior.
// Separators are tried in priority order when the sliding window searches
// for a break point.
type ChunkOptions struct {
	ChunkSize          int
	ChunkOverlap       int
	Separators         []string
	PreserveParagraphs bool
	MinChunkSize       int
	MaxChunkSize       int
}

// DefaultChunkOptions returns the default chunking configuration
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		ChunkSize:          1000,
		ChunkOverlap:       200,
		Separators:         []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " "},
		PreserveParagraphs: true,
		MinChunkSize:       100,
		MaxChunkSize:       2000,
	}
}

var (
	horizontalWhitespace = regexp.MustCompile(`[ \t]+`)
	excessiveNewlines    = regexp.MustCompile(`\n{3,}`)
	sentenceEnd          = regexp.MustCompile(`[.!?]\s+`)
)

// rawChunk is a chunk candidate before the discard rule and metadata
// derivation are applied.
type rawChunk struct {
	content        string
	startPos       int
	endPos         int
	paragraphIndex *int
}

// NewChunker creates a chunker with the given options. Empty or
// whitespace-only input yields an empty slice, not an error.
func NewChunker(opts ChunkOptions) ChunkFunc {
	return func(text string) ([]model.Chunk, error) {
		if opts.ChunkSize <= 0 {
			return nil, fmt.Errorf("chunk size must be positive")
		}
		if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= effectiveChunkSize(opts) {
			return nil, fmt.Errorf("chunk overlap must be non-negative and smaller than chunk size")
		}
		if len(opts.Separators) == 0 {
			opts.Separators = DefaultChunkOptions().Separators
		}

		content := preprocess(text)
		if content == "" {
			return []model.Chunk{}, nil
		}

		var raw []rawChunk
		if opts.PreserveParagraphs {
			raw = chunkByParagraphs(content, opts)
		} else {
			raw = chunkBySize(content, opts)
		}

		return assembleChunks(raw, opts), nil
	}
}

// preprocess normalizes line endings, collapses horizontal whitespace runs
// and excessive newlines (3+ become exactly 2, preserving paragraph breaks),
// and trims the result.
func preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalWhitespace.ReplaceAllString(text, " ")
	text = excessiveNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// effectiveChunkSize returns the window size with MaxChunkSize applied as a
// hard upper bound.
func effectiveChunkSize(opts ChunkOptions) int {
	if opts.MaxChunkSize > 0 && opts.MaxChunkSize < opts.ChunkSize {
		return opts.MaxChunkSize
	}
	return opts.ChunkSize
}

// chunkByParagraphs accumulates whole paragraphs into a running buffer.
// When appending the next paragraph would exceed the chunk size, the current
// chunk is closed and the next one is seeded with an overlap extracted from
// the tail of the closed chunk. A paragraph too long to ever fit in one
// chunk flows through the sliding window together with the buffered content,
// so no chunk exceeds the size bound.
func chunkByParagraphs(content string, opts ChunkOptions) []rawChunk {
	paragraphs := strings.Split(content, "\n\n")
	limit := effectiveChunkSize(opts)

	var chunks []rawChunk
	var buf strings.Builder
	bufStart := 0
	bufEnd := 0
	bufParagraph := 0

	cursor := 0
	for i, para := range paragraphs {
		paraStart := cursor
		cursor += len(para) + 2 // account for the paragraph break

		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > limit {
			if buf.Len() == 0 {
				bufStart = paraStart
				bufParagraph = i
			} else {
				buf.WriteString("\n\n")
			}
			buf.WriteString(para)

			windows := chunkBySize(buf.String(), opts)
			for w, window := range windows[:len(windows)-1] {
				paragraphIndex := i
				if w == 0 {
					paragraphIndex = bufParagraph
				}
				chunks = append(chunks, rawChunk{
					content:        window.content,
					startPos:       bufStart + window.startPos,
					endPos:         bufStart + window.endPos,
					paragraphIndex: &paragraphIndex,
				})
			}

			// The last window stays open so following paragraphs can
			// still be appended to it.
			last := windows[len(windows)-1]
			rest := last.content
			restStart := bufStart + last.startPos
			buf.Reset()
			buf.WriteString(rest)
			bufStart = restStart
			bufEnd = restStart + len(rest)
			bufParagraph = i
			continue
		}

		if buf.Len() > 0 && buf.Len()+2+len(para) > limit {
			closed := buf.String()
			paragraphIndex := bufParagraph
			chunks = append(chunks, rawChunk{
				content:        closed,
				startPos:       bufStart,
				endPos:         bufEnd,
				paragraphIndex: &paragraphIndex,
			})

			buf.Reset()
			overlap := extractOverlap(closed, opts.ChunkOverlap)
			if room := limit - len(para) - 2; len(overlap) > room {
				// The seed must leave room for the paragraph itself.
				if room <= 0 {
					overlap = ""
				} else {
					overlap = strings.TrimSpace(overlap[len(overlap)-room:])
				}
			}
			if overlap != "" {
				buf.WriteString(overlap)
				buf.WriteString("\n\n")
				bufStart = bufEnd - len(overlap)
			} else {
				bufStart = paraStart
			}
			buf.WriteString(para)
			bufEnd = paraStart + len(para)
			bufParagraph = i
			continue
		}

		if buf.Len() == 0 {
			bufStart = paraStart
			bufParagraph = i
		} else {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
		bufEnd = paraStart + len(para)
	}

	if buf.Len() > 0 {
		paragraphIndex := bufParagraph
		chunks = append(chunks, rawChunk{
			content:        buf.String(),
			startPos:       bufStart,
			endPos:         bufEnd,
			paragraphIndex: &paragraphIndex,
		})
	}

	return chunks
}

// chunkBySize takes chunk-sized windows over the content. When not at the
// end, the last ~30% of the window is scanned backward for the earliest-
// priority separator to break at. The window advances by at least one byte,
// so progress is guaranteed even with a large overlap.
func chunkBySize(content string, opts ChunkOptions) []rawChunk {
	var chunks []rawChunk
	limit := effectiveChunkSize(opts)

	start := 0
	for start < len(content) {
		end := start + limit
		if end >= len(content) {
			end = len(content)
		} else {
			scanStart := end - limit*3/10
			if scanStart < start {
				scanStart = start
			}
			for _, sep := range opts.Separators {
				if idx := strings.LastIndex(content[scanStart:end], sep); idx >= 0 {
					end = scanStart + idx + len(sep)
					break
				}
			}
		}

		chunks = append(chunks, rawChunk{
			content:  content[start:end],
			startPos: start,
			endPos:   end,
		})

		if end >= len(content) {
			break
		}

		step := (end - start) - opts.ChunkOverlap
		if step < 1 {
			step = 1
		}
		start += step
	}

	return chunks
}

// extractOverlap takes the last chunkOverlap characters of a chunk about to
// close. If a sentence boundary is found inside that tail, everything up to
// and including it is dropped so the overlap starts at a sentence start.
func extractOverlap(content string, chunkOverlap int) string {
	if chunkOverlap <= 0 || content == "" {
		return ""
	}

	tail := content
	if len(tail) > chunkOverlap {
		tail = tail[len(tail)-chunkOverlap:]
	}

	if loc := sentenceEnd.FindStringIndex(tail); loc != nil {
		return strings.TrimSpace(tail[loc[1]:])
	}
	return strings.TrimSpace(tail)
}

// assembleChunks applies the discard rule and derives per-chunk metadata.
// A candidate below the minimum size is dropped, except the very last chunk
// of a document, which is always kept so trailing content is never lost.
func assembleChunks(raw []rawChunk, opts ChunkOptions) []model.Chunk {
	chunks := make([]model.Chunk, 0, len(raw))
	for i, rc := range raw {
		trimmed := strings.TrimSpace(rc.content)
		if trimmed == "" {
			continue
		}
		if len(trimmed) < opts.MinChunkSize && i != len(raw)-1 {
			continue
		}

		chunks = append(chunks, model.Chunk{
			Index:          len(chunks),
			Content:        trimmed,
			StartPos:       rc.startPos,
			EndPos:         rc.endPos,
			CharLength:     len(trimmed),
			WordCount:      len(strings.Fields(trimmed)),
			SentenceCount:  countSentences(trimmed),
			ParagraphIndex: rc.paragraphIndex,
		})
	}
	return chunks
}

func countSentences(text string) int {
	count := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if count == 0 && text != "" {
		return 1
	}
	return count
}

// StructureStats describes the shape of a document's content
type StructureStats struct {
	ContentLength      int     `json:"content_length"`
	ParagraphCount     int     `json:"paragraph_count"`
	AvgParagraphLength float64 `json:"avg_paragraph_length"`
	MaxParagraphLength int     `json:"max_paragraph_length"`
}

// StructureAnalysis recommends a chunking strategy for a document
type StructureAnalysis struct {
	RecommendedStrategy string         `json:"recommended_strategy"`
	EstimatedChunks     int            `json:"estimated_chunks"`
	Stats               StructureStats `json:"stats"`
	Warnings            []string       `json:"warnings"`
}

// AnalyzeStructure inspects the content and recommends a chunking strategy.
// Documents without paragraph breaks or with very long paragraphs get
// size-based splitting, everything else paragraph-preserving.
func AnalyzeStructure(content string) StructureAnalysis {
	content = preprocess(content)

	analysis := StructureAnalysis{
		RecommendedStrategy: StrategyParagraph,
	}

	if content == "" {
		analysis.RecommendedStrategy = StrategySize
		analysis.Warnings = append(analysis.Warnings, "content is empty")
		return analysis
	}

	var paragraphs []string
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			paragraphs = append(paragraphs, para)
		}
	}

	totalLength := 0
	maxLength := 0
	for _, para := range paragraphs {
		totalLength += len(para)
		if len(para) > maxLength {
			maxLength = len(para)
		}
	}

	avgLength := 0.0
	if len(paragraphs) > 0 {
		avgLength = float64(totalLength) / float64(len(paragraphs))
	}

	analysis.Stats = StructureStats{
		ContentLength:      len(content),
		ParagraphCount:     len(paragraphs),
		AvgParagraphLength: avgLength,
		MaxParagraphLength: maxLength,
	}

	defaultSize := DefaultChunkOptions().ChunkSize
	analysis.EstimatedChunks = (len(content) + defaultSize - 1) / defaultSize
	if analysis.EstimatedChunks < 1 {
		analysis.EstimatedChunks = 1
	}

	switch {
	case len(paragraphs) <= 1:
		analysis.RecommendedStrategy = StrategySize
		analysis.Warnings = append(analysis.Warnings, "content has no paragraph breaks, falling back to size-based splitting")
	case maxLength > 1500:
		analysis.RecommendedStrategy = StrategySize
		analysis.Warnings = append(analysis.Warnings, fmt.Sprintf("longest paragraph is %d characters, size-based splitting recommended", maxLength))
	case avgLength > 800:
		analysis.RecommendedStrategy = StrategySize
		analysis.Warnings = append(analysis.Warnings, fmt.Sprintf("average paragraph length is %.0f characters, size-based splitting recommended", avgLength))
	}

	return analysis
}

// ValidateChunks reports quality warnings for a chunked document. These are
// advisory, never hard failures.
func ValidateChunks(chunks []model.Chunk) []string {
	var warnings []string

	if len(chunks) == 0 {
		warnings = append(warnings, "no chunks were produced")
		return warnings
	}

	totalLength := 0
	for _, chunk := range chunks {
		length := len(chunk.Content)
		totalLength += length
		if length < 50 {
			warnings = append(warnings, fmt.Sprintf("chunk %d is only %d characters long", chunk.Index, length))
		}
		if length > 2000 {
			warnings = append(warnings, fmt.Sprintf("chunk %d is %d characters long", chunk.Index, length))
		}
	}

	mean := float64(totalLength) / float64(len(chunks))
	if mean < 200 {
		warnings = append(warnings, fmt.Sprintf("mean chunk size is only %.0f characters", mean))
	}

	return warnings
}

// SentenceChunker creates a chunker that groups a fixed number of sentences
// per chunk. Mostly useful for short, dense documents.
func SentenceChunker(maxSentencesPerChunk int) ChunkFunc {
	return func(text string) ([]model.Chunk, error) {
		if maxSentencesPerChunk <= 0 {
			return nil, fmt.Errorf("max sentences per chunk must be positive")
		}

		content := preprocess(text)
		if content == "" {
			return []model.Chunk{}, nil
		}

		marked := strings.ReplaceAll(content, "! ", "!|")
		marked = strings.ReplaceAll(marked, "? ", "?|")
		marked = strings.ReplaceAll(marked, ". ", ".|")

		var sentences []string
		for _, s := range strings.Split(marked, "|") {
			s = strings.TrimSpace(s)
			if s != "" {
				sentences = append(sentences, s)
			}
		}

		var raw []rawChunk
		var current []string
		pos := 0

		flush := func() {
			if len(current) == 0 {
				return
			}
			joined := strings.Join(current, " ")
			raw = append(raw, rawChunk{
				content:  joined,
				startPos: pos,
				endPos:   pos + len(joined),
			})
			pos += len(joined) + 1
			current = nil
		}

		for _, sentence := range sentences {
			current = append(current, sentence)
			if len(current) >= maxSentencesPerChunk {
				flush()
			}
		}
		flush()

		// Sentence groups are emitted as-is, without the discard rule
		opts := ChunkOptions{MinChunkSize: 0}
		return assembleChunks(raw, opts), nil
	}
}
