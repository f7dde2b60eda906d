package classifier

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/docpilot/docpilot/model"
)

// Default configuration values.
const (
	DefaultMinConfidence = 0.4
	DefaultMaxKeywords   = 8
)

// ClassifyFunc classifies a query, typically backed by a language model.
// It is used as an optional override of the lexical heuristics.
type ClassifyFunc func(ctx context.Context, query string) (*model.QueryClassification, error)

// Config configures a Classifier.
type Config struct {
	// MinConfidence is the threshold under which a classification falls
	// back to the general type.
	MinConfidence float64

	// MaxKeywords caps the extracted keyword list.
	MaxKeywords int

	// ClassifyFunc optionally overrides the lexical heuristics. On its
	// error the heuristics take over, never the caller.
	ClassifyFunc ClassifyFunc
}

// Classifier assigns a query type with confidence, reasoning and keywords.
// Classification never fails from the caller's perspective: every internal
// failure degrades to the general type.
type Classifier struct {
	minConfidence float64
	maxKeywords   int
	override      ClassifyFunc
}

// New creates a classifier with the given configuration
func New(config Config) *Classifier {
	if config.MinConfidence <= 0 {
		config.MinConfidence = DefaultMinConfidence
	}
	if config.MaxKeywords <= 0 {
		config.MaxKeywords = DefaultMaxKeywords
	}
	return &Classifier{
		minConfidence: config.MinConfidence,
		maxKeywords:   config.MaxKeywords,
		override:      config.ClassifyFunc,
	}
}

var (
	counterfactualMarkers = []string{
		"what if", "what would have", "would have happened", "had we",
		"had they", "had it", "suppose", "imagine if", "instead of",
		"if we had", "if they had", "if it had", "could have been",
	}
	temporalMarkers = []string{
		"before", "after", "when", "during", "until", "since", "timeline",
		"history", "previously", "recently", "latest", "earlier", "later",
		"yesterday", "today", "last year", "last month", "last week",
		"next year", "over time",
	}
	factualMarkers = []string{
		"who", "what", "where", "which", "how many", "how much", "how long",
		"define", "definition", "meaning of", "list", "name the", "is the",
		"are the", "does", "did",
	}

	yearPattern  = regexp.MustCompile(`\b(1[89][0-9]{2}|20[0-9]{2})\b`)
	monthPattern = regexp.MustCompile(`\b(january|february|april|june|july|august|september|october|november|december)\b`)
	// "may" and "march" double as ordinary verbs, so they only count as
	// months alongside another temporal cue.
	ambiguousMonthPattern = regexp.MustCompile(`\b(march|may)\b`)

	nonWord = regexp.MustCompile(`[^a-z0-9]+`)
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "do": true, "does": true,
	"did": true, "have": true, "has": true, "had": true, "will": true,
	"would": true, "could": true, "should": true, "can": true, "may": true,
	"i": true, "we": true, "you": true, "they": true, "it": true, "he": true,
	"she": true, "my": true, "our": true, "your": true, "their": true,
	"its": true, "this": true, "that": true, "these": true, "those": true,
	"what": true, "who": true, "where": true, "which": true, "when": true,
	"why": true, "how": true, "if": true, "of": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "and": true, "or": true, "but": true,
	"not": true, "no": true, "so": true, "as": true, "by": true, "with": true,
	"from": true, "about": true, "into": true, "there": true, "here": true,
	"me": true, "us": true, "them": true, "tell": true, "please": true,
	"happened": true, "happen": true, "instead": true, "suppose": true,
	"imagine": true,
}

// Classify assigns a type to the query. It never returns an error: an
// override failure falls back to the heuristics, and an empty query
// classifies as general with zero confidence.
func (c *Classifier) Classify(ctx context.Context, query string) model.QueryClassification {
	if c.override != nil {
		classification, err := c.override(ctx, query)
		if err == nil && classification != nil && classification.Type.Valid() {
			return *classification
		}
		heuristic := c.classifyLexical(query)
		if err != nil {
			heuristic.Reasoning = fmt.Sprintf("model classification failed (%v); %s", err, heuristic.Reasoning)
		}
		return heuristic
	}
	return c.classifyLexical(query)
}

func (c *Classifier) classifyLexical(query string) model.QueryClassification {
	normalized := normalize(query)
	if normalized == "" {
		return model.QueryClassification{
			Type:            model.QueryTypeGeneral,
			Confidence:      0,
			Reasoning:       "empty query, nothing to classify",
			GeneralFallback: true,
		}
	}

	keywords := c.extractKeywords(normalized)

	counterfactualHits := matchMarkers(normalized, counterfactualMarkers)
	temporalHits := matchMarkers(normalized, temporalMarkers)
	temporalHits = append(temporalHits, yearPattern.FindAllString(normalized, -1)...)
	temporalHits = append(temporalHits, monthPattern.FindAllString(normalized, -1)...)
	if len(temporalHits) > 0 {
		temporalHits = append(temporalHits, ambiguousMonthPattern.FindAllString(normalized, -1)...)
	}
	factualHits := matchMarkers(normalized, factualMarkers)

	type candidate struct {
		queryType  model.QueryType
		hits       []string
		confidence float64
	}
	candidates := []candidate{
		{model.QueryTypeCounterfactual, counterfactualHits, markerConfidence(0.8, len(counterfactualHits))},
		{model.QueryTypeTemporal, temporalHits, markerConfidence(0.75, len(temporalHits))},
		{model.QueryTypeFactual, factualHits, markerConfidence(0.65, len(factualHits))},
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.confidence > best.confidence {
			best = cand
		}
	}

	classification := model.QueryClassification{
		Type:       best.queryType,
		Confidence: best.confidence,
		Keywords:   keywords,
	}
	if len(temporalHits) > 0 {
		classification.TemporalIndicators = dedupe(temporalHits)
	}

	switch {
	case best.confidence == 0:
		classification.Type = model.QueryTypeGeneral
		classification.Confidence = 0.5
		classification.Reasoning = "no strong lexical signal for a specific type, using general"
		classification.GeneralFallback = true
	case best.confidence < c.minConfidence:
		classification.Type = model.QueryTypeGeneral
		classification.Reasoning = fmt.Sprintf(
			"%s signal with confidence %.2f below threshold %.2f, falling back to general",
			best.queryType, best.confidence, c.minConfidence,
		)
		classification.GeneralFallback = true
	default:
		classification.Reasoning = fmt.Sprintf(
			"matched %d %s marker(s): %s",
			len(best.hits), best.queryType, strings.Join(dedupe(best.hits), ", "),
		)
	}

	return classification
}

// markerConfidence maps a hit count onto a confidence score. The base score
// applies for a single hit and every further hit adds a small increment.
func markerConfidence(base float64, hits int) float64 {
	if hits == 0 {
		return 0
	}
	confidence := base + 0.05*float64(hits-1)
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}

// normalize lowercases the query and collapses punctuation into spaces, so
// marker matching can rely on word boundaries.
func normalize(query string) string {
	lowered := strings.ToLower(query)
	lowered = nonWord.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(lowered)
}

// matchMarkers returns the markers found with word boundaries intact
func matchMarkers(normalized string, markers []string) []string {
	padded := " " + normalized + " "
	var hits []string
	for _, marker := range markers {
		if strings.Contains(padded, " "+marker+" ") {
			hits = append(hits, marker)
		}
	}
	return hits
}

// extractKeywords returns the non-stopword terms of the query in order of
// first appearance, deduped and capped.
func (c *Classifier) extractKeywords(normalized string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, word := range strings.Fields(normalized) {
		if len(word) < 2 || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) >= c.maxKeywords {
			break
		}
	}
	return keywords
}

func dedupe(values []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		result = append(result, value)
	}
	return result
}
