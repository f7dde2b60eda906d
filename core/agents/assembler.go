package agents

import (
	"sort"
	"strings"

	"github.com/docpilot/docpilot/model"
)

// excerptLimit caps how much chunk content a source citation carries
const excerptLimit = 300

// sourceFromResult turns a search hit into a citable source
func sourceFromResult(result model.SearchResult) model.Source {
	excerpt := result.Content
	if result.Highlight != "" {
		excerpt = result.Highlight
	}
	return model.Source{
		DocumentID: result.DocumentRID,
		ChunkID:    result.ChunkID,
		Filename:   result.Filename,
		Excerpt:    truncateExcerpt(excerpt),
		Score:      result.Score,
	}
}

// assembleSources deduplicates by chunk and orders by descending relevance.
// The first occurrence of a chunk wins so merged highlights survive. A nil
// input yields an empty, non-nil slice.
func assembleSources(sources []model.Source) []model.Source {
	assembled := make([]model.Source, 0, len(sources))
	seen := make(map[int64]bool, len(sources))
	for _, source := range sources {
		if seen[source.ChunkID] {
			continue
		}
		seen[source.ChunkID] = true
		assembled = append(assembled, source)
	}
	sort.SliceStable(assembled, func(i, j int) bool {
		return assembled[i].Score > assembled[j].Score
	})
	return assembled
}

func truncateExcerpt(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= excerptLimit {
		return content
	}

	cut := content[:excerptLimit]
	if idx := strings.LastIndex(cut, " "); idx > excerptLimit/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// responseTypeFor maps a terminal agent to the response type it produces
func responseTypeFor(agent model.AgentName) model.ResponseType {
	switch agent {
	case model.AgentReasoning:
		return model.ResponseTypeReasoning
	case model.AgentSimulation:
		return model.ResponseTypeSimulation
	case model.AgentTemporal:
		return model.ResponseTypeTemporal
	default:
		return model.ResponseTypeGeneralKnowledge
	}
}
