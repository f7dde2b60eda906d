package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocess(t *testing.T) {
	t.Run("Normalizes line endings", func(t *testing.T) {
		assert.Equal(t, "one\ntwo\nthree", preprocess("one\r\ntwo\rthree"))
	})

	t.Run("Collapses horizontal whitespace runs", func(t *testing.T) {
		assert.Equal(t, "one two three", preprocess("one\t\t  two   three"))
	})

	t.Run("Collapses excessive newlines to paragraph breaks", func(t *testing.T) {
		assert.Equal(t, "one\n\ntwo", preprocess("one\n\n\n\n\ntwo"))
	})

	t.Run("Trims surrounding whitespace", func(t *testing.T) {
		assert.Equal(t, "content", preprocess("  \n content \n\n "))
	})
}

func TestNewChunkerParagraphPreserving(t *testing.T) {
	t.Run("Short paragraphs stay in one chunk", func(t *testing.T) {
		chunker := NewChunker(DefaultChunkOptions())
		text := "First paragraph about the quarterly report.\n\nSecond paragraph about revenue."

		chunks, err := chunker(text)

		require.NoError(t, err)
		require.Len(t, chunks, 1, "Expected both paragraphs in one chunk")
		assert.Contains(t, chunks[0].Content, "First paragraph")
		assert.Contains(t, chunks[0].Content, "Second paragraph")
		assert.Equal(t, 0, chunks[0].Index, "Expected chunk index to start at zero")
		require.NotNil(t, chunks[0].ParagraphIndex, "Expected paragraph index to be set")
		assert.Equal(t, 0, *chunks[0].ParagraphIndex)
	})

	t.Run("Paragraph exceeding chunk size closes the chunk and seeds overlap", func(t *testing.T) {
		paraA := strings.Repeat("alpha ", 20) + "ends the first paragraph." // ~145 chars
		paraB := strings.Repeat("bravo ", 20) + "ends the second paragraph."
		paraC := strings.Repeat("charlie ", 15) + "ends the third paragraph."

		chunker := NewChunker(ChunkOptions{
			ChunkSize:          200,
			ChunkOverlap:       50,
			PreserveParagraphs: true,
			MinChunkSize:       10,
		})

		chunks, err := chunker(paraA + "\n\n" + paraB + "\n\n" + paraC)

		require.NoError(t, err)
		require.Len(t, chunks, 3, "Expected one chunk per paragraph")
		assert.Contains(t, chunks[0].Content, "alpha")
		assert.Contains(t, chunks[1].Content, "bravo")
		assert.Contains(t, chunks[2].Content, "charlie")

		// The second chunk carries an overlap tail from the first
		assert.NotEqual(t, 0, strings.Index(chunks[1].Content, "bravo"), "Expected overlap text before the new paragraph")

		for i, chunk := range chunks {
			assert.Equal(t, i, chunk.Index, "Expected sequential chunk indexes")
		}
	})

	t.Run("Oversized paragraph is split at a sentence boundary", func(t *testing.T) {
		paraA := "Intro paragraph for the handbook document here now."
		paraB := strings.TrimSpace(strings.Repeat("Billing reports are generated at the end of every cycle. ", 21))
		paraC := strings.TrimSpace(strings.Repeat("Final paragraph content. ", 12))
		require.Greater(t, len(paraB), 1000, "Expected the middle paragraph to exceed the chunk size")

		chunker := NewChunker(ChunkOptions{
			ChunkSize:          1000,
			ChunkOverlap:       200,
			PreserveParagraphs: true,
			MinChunkSize:       100,
		})

		chunks, err := chunker(paraA + "\n\n" + paraB + "\n\n" + paraC)

		require.NoError(t, err)
		require.Len(t, chunks, 2, "Expected the oversized paragraph to be split across two chunks")
		for _, chunk := range chunks {
			assert.LessOrEqual(t, len(chunk.Content), 1000, "Expected chunk %d within the size limit", chunk.Index)
		}
		assert.Greater(t, len(chunks[0].Content), 700, "Expected the first chunk to fill up close to the size limit")
		assert.True(t, strings.HasSuffix(chunks[0].Content, "."), "Expected the first chunk to end at a sentence boundary, got %q", chunks[0].Content[len(chunks[0].Content)-20:])
		assert.Contains(t, chunks[0].Content, "Intro paragraph", "Expected the short first paragraph to share a chunk with the split one")
		assert.Contains(t, chunks[1].Content, "Final paragraph", "Expected the trailing paragraph in the second chunk")
		assert.Less(t, chunks[1].StartPos, chunks[0].EndPos, "Expected the second chunk to start inside the overlap window")
		assert.GreaterOrEqual(t, chunks[1].StartPos, chunks[0].EndPos-200, "Expected the overlap to stay within the configured window")
	})

	t.Run("Max chunk size bounds the split of a huge paragraph", func(t *testing.T) {
		para := strings.TrimSpace(strings.Repeat("Sentence number one in a very long continuous paragraph. ", 56))
		require.Greater(t, len(para), 3000, "Expected the paragraph to exceed the chunk size")

		chunker := NewChunker(ChunkOptions{
			ChunkSize:          3000,
			ChunkOverlap:       200,
			PreserveParagraphs: true,
			MinChunkSize:       100,
			MaxChunkSize:       2000,
		})

		chunks, err := chunker(para)

		require.NoError(t, err)
		require.Greater(t, len(chunks), 1, "Expected the paragraph to be split")
		for _, chunk := range chunks {
			assert.LessOrEqual(t, len(chunk.Content), 2000, "Expected chunk %d to respect the max chunk size", chunk.Index)
		}
	})

	t.Run("Chunk positions point into the preprocessed content", func(t *testing.T) {
		paraA := strings.Repeat("first ", 30)
		paraB := strings.Repeat("second ", 30)

		chunker := NewChunker(ChunkOptions{
			ChunkSize:          200,
			ChunkOverlap:       0,
			PreserveParagraphs: true,
			MinChunkSize:       10,
		})

		chunks, err := chunker(paraA + "\n\n" + paraB)

		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, 0, chunks[0].StartPos, "Expected first chunk to start at zero")
		assert.Greater(t, chunks[1].StartPos, chunks[0].StartPos, "Expected positions to advance")
		assert.Greater(t, chunks[1].EndPos, chunks[1].StartPos, "Expected end after start")
	})
}

func TestNewChunkerSlidingWindow(t *testing.T) {
	opts := ChunkOptions{
		ChunkSize:          100,
		ChunkOverlap:       20,
		Separators:         DefaultChunkOptions().Separators,
		PreserveParagraphs: false,
		MinChunkSize:       10,
	}

	t.Run("Windows respect the chunk size and break at sentence boundaries", func(t *testing.T) {
		text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
		chunker := NewChunker(opts)

		chunks, err := chunker(text)

		require.NoError(t, err)
		require.Greater(t, len(chunks), 2, "Expected multiple chunks")
		for _, chunk := range chunks {
			assert.LessOrEqual(t, len(chunk.Content), opts.ChunkSize, "Expected chunk within the size limit")
		}
		assert.True(t, strings.HasSuffix(chunks[0].Content, "dog."), "Expected break at a sentence boundary, got %q", chunks[0].Content)
	})

	t.Run("Consecutive windows overlap", func(t *testing.T) {
		text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
		chunker := NewChunker(opts)

		chunks, err := chunker(text)

		require.NoError(t, err)
		for i := 1; i < len(chunks); i++ {
			assert.Less(t, chunks[i].StartPos, chunks[i-1].EndPos, "Expected windows to overlap")
			assert.Greater(t, chunks[i].StartPos, chunks[i-1].StartPos, "Expected windows to advance")
		}
	})

	t.Run("Window always advances even with large overlap", func(t *testing.T) {
		tight := opts
		tight.ChunkSize = 50
		tight.ChunkOverlap = 49
		chunker := NewChunker(tight)

		chunks, err := chunker(strings.Repeat("abcdefghij", 20))

		require.NoError(t, err)
		assert.NotEmpty(t, chunks, "Expected chunking to terminate and produce chunks")
	})

	t.Run("Final window covers the end of the content", func(t *testing.T) {
		text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
		chunker := NewChunker(opts)

		chunks, err := chunker(text)

		require.NoError(t, err)
		last := chunks[len(chunks)-1]
		assert.Equal(t, len(preprocess(text)), last.EndPos, "Expected last chunk to end at the content end")
	})
}

func TestExtractOverlap(t *testing.T) {
	t.Run("Overlap starts after a sentence boundary in the tail", func(t *testing.T) {
		content := "First sentence here. Second part of text"
		overlap := extractOverlap(content, 25)
		assert.Equal(t, "Second part of text", overlap, "Expected overlap to start at the sentence start")
	})

	t.Run("Raw tail is used without a sentence boundary", func(t *testing.T) {
		overlap := extractOverlap("abcdefghij", 5)
		assert.Equal(t, "fghij", overlap)
	})

	t.Run("Zero overlap yields empty string", func(t *testing.T) {
		assert.Empty(t, extractOverlap("some content", 0))
	})

	t.Run("Short content is returned whole", func(t *testing.T) {
		assert.Equal(t, "tiny", extractOverlap("tiny", 100))
	})
}

func TestChunkerDiscardRule(t *testing.T) {
	t.Run("Undersized intermediate chunk is discarded", func(t *testing.T) {
		paraA := strings.Repeat("a", 150)
		tiny := "Short."
		paraC := strings.Repeat("c", 150)

		chunker := NewChunker(ChunkOptions{
			ChunkSize:          151,
			ChunkOverlap:       0,
			PreserveParagraphs: true,
			MinChunkSize:       50,
		})

		chunks, err := chunker(paraA + "\n\n" + tiny + "\n\n" + paraC)

		require.NoError(t, err)
		require.Len(t, chunks, 2, "Expected the tiny intermediate chunk to be discarded")
		assert.NotContains(t, chunks[0].Content, "Short.")
		assert.NotContains(t, chunks[1].Content, "Short.")
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, 1, chunks[1].Index, "Expected indexes to be reassigned after the discard")
	})

	t.Run("Undersized final chunk is always kept", func(t *testing.T) {
		chunker := NewChunker(ChunkOptions{
			ChunkSize:          100,
			ChunkOverlap:       0,
			Separators:         []string{" "},
			PreserveParagraphs: false,
			MinChunkSize:       50,
		})

		text := strings.Repeat("word ", 44) + "tail"
		chunks, err := chunker(text)

		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		assert.Contains(t, chunks[len(chunks)-1].Content, "tail", "Expected trailing content to survive the discard rule")
	})
}

func TestChunkerEmptyInput(t *testing.T) {
	chunker := NewChunker(DefaultChunkOptions())

	t.Run("Empty input yields empty slice", func(t *testing.T) {
		chunks, err := chunker("")
		assert.NoError(t, err, "Expected empty input to not be an error")
		assert.Empty(t, chunks)
		assert.NotNil(t, chunks, "Expected an empty slice, not nil")
	})

	t.Run("Whitespace-only input yields empty slice", func(t *testing.T) {
		chunks, err := chunker("  \n\n \t ")
		assert.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

func TestChunkerInvalidOptions(t *testing.T) {
	t.Run("Zero chunk size", func(t *testing.T) {
		chunker := NewChunker(ChunkOptions{ChunkSize: 0})
		_, err := chunker("some text")
		assert.Error(t, err, "Expected error for zero chunk size")
	})

	t.Run("Overlap not smaller than chunk size", func(t *testing.T) {
		chunker := NewChunker(ChunkOptions{ChunkSize: 100, ChunkOverlap: 100})
		_, err := chunker("some text")
		assert.Error(t, err, "Expected error for overlap equal to chunk size")
	})
}

func TestChunkerDerivedMetadata(t *testing.T) {
	chunker := NewChunker(DefaultChunkOptions())
	text := "One sentence here. Another sentence follows! A question too?"

	chunks, err := chunker(text)

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	chunk := chunks[0]
	assert.Equal(t, len(chunk.Content), chunk.CharLength, "Expected char length to match content")
	assert.Equal(t, 9, chunk.WordCount, "Expected word count from whitespace fields")
	assert.Equal(t, 3, chunk.SentenceCount, "Expected one count per terminator")
}

func TestAnalyzeStructure(t *testing.T) {
	t.Run("Well-formed paragraphs recommend paragraph strategy", func(t *testing.T) {
		text := strings.Repeat("A paragraph of reasonable length for testing purposes.\n\n", 5)

		analysis := AnalyzeStructure(text)

		assert.Equal(t, StrategyParagraph, analysis.RecommendedStrategy)
		assert.Empty(t, analysis.Warnings, "Expected no warnings for well-formed content")
		assert.Equal(t, 5, analysis.Stats.ParagraphCount)
		assert.GreaterOrEqual(t, analysis.EstimatedChunks, 1)
	})

	t.Run("Content without paragraph breaks recommends size strategy", func(t *testing.T) {
		text := strings.Repeat("continuous text without breaks ", 50)

		analysis := AnalyzeStructure(text)

		assert.Equal(t, StrategySize, analysis.RecommendedStrategy)
		require.NotEmpty(t, analysis.Warnings)
		assert.Contains(t, analysis.Warnings[0], "no paragraph breaks")
	})

	t.Run("Very long paragraph recommends size strategy", func(t *testing.T) {
		text := strings.Repeat("x", 1600) + "\n\nshort one.\n\nanother short one."

		analysis := AnalyzeStructure(text)

		assert.Equal(t, StrategySize, analysis.RecommendedStrategy)
		require.NotEmpty(t, analysis.Warnings)
		assert.Contains(t, analysis.Warnings[0], "longest paragraph")
	})

	t.Run("High average paragraph length recommends size strategy", func(t *testing.T) {
		text := strings.Repeat("y", 1000) + "\n\n" + strings.Repeat("z", 1000)

		analysis := AnalyzeStructure(text)

		assert.Equal(t, StrategySize, analysis.RecommendedStrategy)
	})

	t.Run("Empty content", func(t *testing.T) {
		analysis := AnalyzeStructure("   ")
		assert.Equal(t, StrategySize, analysis.RecommendedStrategy)
		assert.Contains(t, analysis.Warnings[0], "empty")
	})

	t.Run("Estimated chunks scale with content length", func(t *testing.T) {
		short := AnalyzeStructure("short text")
		long := AnalyzeStructure(strings.Repeat("some paragraph content.\n\n", 200))
		assert.Equal(t, 1, short.EstimatedChunks)
		assert.Greater(t, long.EstimatedChunks, short.EstimatedChunks)
	})
}

func TestValidateChunks(t *testing.T) {
	chunker := NewChunker(DefaultChunkOptions())

	t.Run("No chunks", func(t *testing.T) {
		warnings := ValidateChunks(nil)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "no chunks")
	})

	t.Run("Healthy chunks produce no warnings", func(t *testing.T) {
		text := strings.Repeat("A reasonably sized sentence for chunk validation purposes. ", 20)
		chunks, err := chunker(text)
		require.NoError(t, err)

		warnings := ValidateChunks(chunks)
		assert.Empty(t, warnings, "Expected no warnings for healthy chunks: %v", warnings)
	})

	t.Run("Undersized chunk is reported", func(t *testing.T) {
		chunks, err := SentenceChunker(1)("Tiny chunk.")
		require.NoError(t, err)

		warnings := ValidateChunks(chunks)
		assert.NotEmpty(t, warnings, "Expected warnings for undersized chunk")
	})
}

func TestSentenceChunker(t *testing.T) {
	t.Run("Valid chunking with multiple sentences", func(t *testing.T) {
		chunker := SentenceChunker(2)
		text := "This is sentence one. This is sentence two. This is sentence three."

		chunks, err := chunker(text)

		require.NoError(t, err)
		assert.Len(t, chunks, 2, "Expected two sentences per chunk")
		for i, chunk := range chunks {
			assert.NotEmpty(t, chunk.Content)
			assert.Equal(t, i, chunk.Index)
		}
	})

	t.Run("Single sentence", func(t *testing.T) {
		chunker := SentenceChunker(1)
		chunks, err := chunker("This is a single sentence.")

		require.NoError(t, err)
		assert.Equal(t, 1, len(chunks))
		assert.Contains(t, chunks[0].Content, "single sentence")
	})

	t.Run("Error with zero max sentences", func(t *testing.T) {
		chunker := SentenceChunker(0)
		_, err := chunker("Some text.")
		assert.Error(t, err, "Expected error for zero max sentences")
	})

	t.Run("Empty input yields empty slice", func(t *testing.T) {
		chunker := SentenceChunker(2)
		chunks, err := chunker("   ")
		assert.NoError(t, err)
		assert.Empty(t, chunks)
	})
}
