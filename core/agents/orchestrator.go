// Package agents sequences the specialized agents that answer a query:
// router, retriever and one terminal agent per query type. Every agent
// invocation is traced and the pipeline degrades instead of failing wherever
// the specification allows it.
package agents

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docpilot/docpilot/core/classifier"
	"github.com/docpilot/docpilot/core/llm"
	"github.com/docpilot/docpilot/helper"
	"github.com/docpilot/docpilot/model"
)

// State is the position of a query in the orchestration state machine.
type State string

const (
	StateClassified State = "classified"
	StateRouted     State = "routed"
	StateRetrieved  State = "retrieved"
	StateAssembled  State = "assembled"
	StateFailed     State = "failed"
)

// failedAnswer is the best-effort answer returned when the terminal agent
// fails.
const failedAnswer = "I was unable to complete the analysis of your question. Please try again."

// noDocumentsAnswer is returned when nothing is indexed and general
// knowledge answers are disabled.
const noDocumentsAnswer = "No documents have been uploaded yet. Upload documents first or enable general knowledge answers."

// Searcher is the retrieval surface the retriever agent consumes
type Searcher interface {
	HybridSearch(ctx context.Context, query string, config *model.QueryConfig) (*model.SearchResultSet, error)
}

// DocumentStore reports how many documents are indexed
type DocumentStore interface {
	CountDocuments() (int64, error)
}

// Request is one query to orchestrate.
type Request struct {
	Query         string
	DocumentRIDs  []uuid.UUID
	TopK          int
	Settings      model.Settings
	EnableTracing bool
}

// Result is the assembled outcome of one orchestrated query.
type Result struct {
	Answer         string                    `json:"answer"`
	Sources        []model.Source            `json:"sources"`
	Classification model.QueryClassification `json:"classification"`
	Traces         []model.AgentTrace        `json:"traces,omitempty"`
	ResponseType   model.ResponseType        `json:"response_type"`
	State          State                     `json:"state"`
	Degraded       bool                      `json:"degraded,omitempty"`
	ExecutionTime  time.Duration             `json:"-"`
}

// Orchestrator runs the classify, route, retrieve, answer pipeline
type Orchestrator struct {
	classifier *classifier.Classifier
	searcher   Searcher
	documents  DocumentStore
	generate   llm.GenerateFunc
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil generate function selects
// extractive answers built from the retrieved passages instead of model
// completions.
func NewOrchestrator(c *classifier.Classifier, searcher Searcher, documents DocumentStore, generate llm.GenerateFunc, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		classifier: c,
		searcher:   searcher,
		documents:  documents,
		generate:   generate,
		logger:     logger,
	}
}

// tracer collects agent traces in strict execution order
type tracer struct {
	enabled bool
	order   int
	traces  []model.AgentTrace
}

// run invokes one agent and records its trace. Errors are recorded on the
// trace and returned for the caller's fatal/non-fatal decision.
func (t *tracer) run(agent model.AgentName, input model.Metadata, fn func() (model.AgentOutput, error)) (model.AgentOutput, error) {
	start := time.Now()
	output, err := fn()
	if !t.enabled {
		return output, err
	}

	end := time.Now()
	trace := model.AgentTrace{
		Agent:          agent,
		ExecutionOrder: t.order,
		StartedAt:      start,
		EndedAt:        end,
		DurationMs:     end.Sub(start).Milliseconds(),
		Input:          input,
		Output:         output,
	}
	if err != nil {
		trace.Error = err.Error()
	}
	t.order++
	t.traces = append(t.traces, trace)
	return output, err
}

// Ask answers one query. Pipeline failures degrade into a best-effort
// result; only invalid input is returned as an error.
func (o *Orchestrator) Ask(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, helper.NewError("Orchestrator.Ask", model.ErrEmptyInput)
	}

	settings := req.Settings
	if settings.DocumentRelevanceThreshold == 0 {
		settings = model.DefaultSettings()
	}
	if req.TopK <= 0 {
		req.TopK = model.DefaultQueryConfig().TopK
	}

	start := time.Now()
	tr := &tracer{enabled: req.EnableTracing}
	result := &Result{State: StateClassified}

	result.Classification = o.classifier.Classify(ctx, req.Query)

	route := o.route(tr, result.Classification, settings)
	result.State = StateRouted
	terminal := route.SelectedAgent

	var sources []model.Source
	if route.NeedsRetrieval {
		outcome := o.retrieve(ctx, tr, req, settings)
		result.State = StateRetrieved
		sources = outcome.sources
		result.Degraded = outcome.degraded

		if len(sources) == 0 {
			if outcome.noDocuments && !settings.UseGeneralKnowledge {
				return o.finish(result, tr, noDocumentsAnswer, nil, model.ResponseTypeNoDocuments, start), nil
			}
			if settings.UseGeneralKnowledge {
				// Nothing to ground the answer on, fall through to the
				// general knowledge agent
				terminal = model.AgentGeneralKnowledge
			}
		}
	}

	answer, err := o.runTerminal(ctx, tr, terminal, req.Query, result.Classification, sources)
	if err != nil {
		o.logger.Error("terminal agent failed", "agent", string(terminal), "error", err)
		result.State = StateFailed
		result.Answer = failedAnswer
		result.Sources = assembleSources(sources)
		result.ResponseType = model.ResponseTypeError
		result.Traces = tr.traces
		result.ExecutionTime = time.Since(start)
		return result, nil
	}

	return o.finish(result, tr, answer, sources, responseTypeFor(terminal), start), nil
}

// finish moves the result into the assembled state
func (o *Orchestrator) finish(result *Result, tr *tracer, answer string, sources []model.Source, responseType model.ResponseType, start time.Time) *Result {
	result.State = StateAssembled
	result.Answer = answer
	result.Sources = assembleSources(sources)
	result.ResponseType = responseType
	result.Traces = tr.traces
	result.ExecutionTime = time.Since(start)
	return result
}

// route selects the terminal agent for the classification. The router never
// fails: unknown types route to the general knowledge agent.
func (o *Orchestrator) route(tr *tracer, classification model.QueryClassification, settings model.Settings) *model.RouterOutput {
	input := model.Metadata{
		"query_type": string(classification.Type),
		"confidence": classification.Confidence,
	}

	output, _ := tr.run(model.AgentRouter, input, func() (model.AgentOutput, error) {
		route := model.RouterOutput{}
		switch classification.Type {
		case model.QueryTypeFactual:
			route.SelectedAgent = model.AgentReasoning
			route.NeedsRetrieval = true
			route.Reasoning = "factual query routed through retrieval to the reasoning agent"
		case model.QueryTypeCounterfactual:
			route.SelectedAgent = model.AgentSimulation
			route.NeedsRetrieval = true
			route.Reasoning = "counterfactual query routed through retrieval to the simulation agent"
		case model.QueryTypeTemporal:
			route.SelectedAgent = model.AgentTemporal
			route.NeedsRetrieval = true
			route.Reasoning = "temporal query routed through retrieval to the temporal agent"
		default:
			route.SelectedAgent = model.AgentGeneralKnowledge
			route.NeedsRetrieval = false
			route.Reasoning = "general query answered without document retrieval"
		}
		return route, nil
	})

	route := output.(model.RouterOutput)
	return &route
}

// retrievalOutcome is what the retriever hands to the rest of the pipeline
type retrievalOutcome struct {
	sources     []model.Source
	degraded    bool
	noDocuments bool
}

// retrieve runs the retriever agent: hybrid search filtered by the
// relevance threshold. Retrieval failure is non-fatal and yields an empty
// source set.
func (o *Orchestrator) retrieve(ctx context.Context, tr *tracer, req Request, settings model.Settings) *retrievalOutcome {
	threshold := settings.DocumentRelevanceThreshold
	input := model.Metadata{
		"query":     req.Query,
		"top_k":     req.TopK,
		"threshold": threshold,
	}

	outcome := &retrievalOutcome{}
	_, err := tr.run(model.AgentRetriever, input, func() (model.AgentOutput, error) {
		count, err := o.documents.CountDocuments()
		if err != nil {
			return nil, err
		}
		if count == 0 {
			outcome.noDocuments = true
			return model.RetrieverOutput{Threshold: threshold}, nil
		}

		config := model.DefaultQueryConfig()
		config.TopK = req.TopK
		config.DocumentRIDs = req.DocumentRIDs
		resultSet, err := o.searcher.HybridSearch(ctx, req.Query, &config)
		if err != nil {
			return nil, err
		}

		outcome.degraded = resultSet.Degraded
		for _, result := range resultSet.Results {
			if result.Score < threshold {
				continue
			}
			outcome.sources = append(outcome.sources, sourceFromResult(result))
		}

		return model.RetrieverOutput{
			Sources:        outcome.sources,
			TotalHits:      len(resultSet.Results),
			Threshold:      threshold,
			Degraded:       resultSet.Degraded,
			BelowThreshold: len(resultSet.Results) - len(outcome.sources),
		}, nil
	})
	if err != nil {
		o.logger.Warn("retriever agent failed", "error", err)
	}

	return outcome
}
