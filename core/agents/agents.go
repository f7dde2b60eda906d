package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/docpilot/docpilot/model"
)

const generalKnowledgeDisclaimer = "This answer is based on general knowledge, not on your uploaded documents."

const noModelAnswer = "No language model is configured, so I can only answer from your documents. Please upload relevant documents or configure a model."

// runTerminal executes the selected terminal agent and returns its answer.
// An error here is fatal for the query.
func (o *Orchestrator) runTerminal(ctx context.Context, tr *tracer, agent model.AgentName, query string, classification model.QueryClassification, sources []model.Source) (string, error) {
	input := model.Metadata{
		"query":   query,
		"sources": len(sources),
	}

	output, err := tr.run(agent, input, func() (model.AgentOutput, error) {
		switch agent {
		case model.AgentReasoning:
			return o.reason(ctx, query, sources)
		case model.AgentSimulation:
			return o.simulate(ctx, query, sources)
		case model.AgentTemporal:
			return o.temporalAnswer(ctx, query, classification, sources)
		default:
			return o.generalAnswer(ctx, query)
		}
	})
	if err != nil {
		return "", err
	}

	switch out := output.(type) {
	case model.ReasoningOutput:
		return out.Answer, nil
	case model.SimulationOutput:
		return out.Answer, nil
	case model.TemporalOutput:
		return out.Answer, nil
	case model.GeneralKnowledgeOutput:
		return out.Answer, nil
	default:
		return "", fmt.Errorf("unexpected terminal output %T", output)
	}
}

func (o *Orchestrator) reason(ctx context.Context, query string, sources []model.Source) (model.AgentOutput, error) {
	answer, err := o.complete(ctx,
		"You are a precise analyst. Answer the question strictly from the provided document excerpts. If the excerpts do not contain the answer, say so.",
		promptWithSources(query, sources))
	if err != nil {
		return nil, err
	}
	return model.ReasoningOutput{Answer: answer, SourcesUsed: len(sources)}, nil
}

func (o *Orchestrator) simulate(ctx context.Context, query string, sources []model.Source) (model.AgentOutput, error) {
	answer, err := o.complete(ctx,
		"You are a scenario analyst. Explore the hypothetical in the question using the provided document excerpts as the factual baseline. State your assumptions explicitly.",
		promptWithSources(query, sources))
	if err != nil {
		return nil, err
	}
	return model.SimulationOutput{
		Answer:      answer,
		Assumptions: []string{"the document excerpts describe the actual course of events"},
		SourcesUsed: len(sources),
	}, nil
}

func (o *Orchestrator) temporalAnswer(ctx context.Context, query string, classification model.QueryClassification, sources []model.Source) (model.AgentOutput, error) {
	system := "You are a timeline analyst. Order events chronologically based on the provided document excerpts and answer the question about the sequence."
	answer, err := o.complete(ctx, system, promptWithSources(query, sources))
	if err != nil {
		return nil, err
	}
	return model.TemporalOutput{
		Answer:      answer,
		Timeline:    classification.TemporalIndicators,
		SourcesUsed: len(sources),
	}, nil
}

func (o *Orchestrator) generalAnswer(ctx context.Context, query string) (model.AgentOutput, error) {
	if o.generate == nil {
		return model.GeneralKnowledgeOutput{
			Answer:     noModelAnswer,
			Disclaimer: generalKnowledgeDisclaimer,
		}, nil
	}
	answer, err := o.generate(ctx,
		"You are a helpful assistant. Answer from general knowledge and say clearly that the answer is not grounded in the user's documents.",
		query)
	if err != nil {
		return nil, err
	}
	return model.GeneralKnowledgeOutput{Answer: answer, Disclaimer: generalKnowledgeDisclaimer}, nil
}

// complete runs the language model, or falls back to an extractive answer
// built from the source excerpts when no model is configured.
func (o *Orchestrator) complete(ctx context.Context, system, prompt string) (string, error) {
	if o.generate == nil {
		return extractiveAnswer(prompt), nil
	}
	return o.generate(ctx, system, prompt)
}

// promptWithSources renders the query together with numbered excerpts
func promptWithSources(query string, sources []model.Source) string {
	if len(sources) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nDocument excerpts:\n")
	for i, source := range sources {
		fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, source.Filename, source.Excerpt)
	}
	return b.String()
}

// extractiveAnswer is the offline fallback: it surfaces the excerpts
// themselves instead of a generated synthesis.
func extractiveAnswer(prompt string) string {
	_, excerpts, found := strings.Cut(prompt, "\n\nDocument excerpts:\n")
	if !found || strings.TrimSpace(excerpts) == "" {
		return noModelAnswer
	}
	return "Based on the most relevant passages in your documents:\n\n" + strings.TrimSpace(excerpts)
}
