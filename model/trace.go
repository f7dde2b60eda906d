package model

import (
	"encoding/json"
	"time"
)

// AgentName identifies one step of the query-answering pipeline.
type AgentName string

const (
	AgentRouter           AgentName = "router"
	AgentRetriever        AgentName = "retriever"
	AgentReasoning        AgentName = "reasoning"
	AgentSimulation       AgentName = "simulation"
	AgentTemporal         AgentName = "temporal"
	AgentGeneralKnowledge AgentName = "general_knowledge"
)

// ResponseType tags which terminal agent produced an answer.
type ResponseType string

const (
	ResponseTypeReasoning        ResponseType = "reasoning"
	ResponseTypeSimulation       ResponseType = "simulation"
	ResponseTypeTemporal         ResponseType = "temporal"
	ResponseTypeGeneralKnowledge ResponseType = "general_knowledge"
	ResponseTypeNoDocuments      ResponseType = "no_documents"
	ResponseTypeError            ResponseType = "error"
)

// AgentOutput is the tagged union of per-agent result payloads. Every agent
// kind has its own explicit schema instead of a loosely-shaped data blob.
type AgentOutput interface {
	Agent() AgentName
}

// RouterOutput records the downstream chain selected for a classification.
type RouterOutput struct {
	SelectedAgent  AgentName `json:"selected_agent"`
	NeedsRetrieval bool      `json:"needs_retrieval"`
	Reasoning      string    `json:"reasoning,omitempty"`
}

func (RouterOutput) Agent() AgentName { return AgentRouter }

// RetrieverOutput records what the retriever pulled from the search index.
type RetrieverOutput struct {
	Sources        []Source `json:"sources"`
	TotalHits      int      `json:"total_hits"`
	Threshold      float64  `json:"threshold"`
	Degraded       bool     `json:"degraded,omitempty"`
	BelowThreshold int      `json:"below_threshold,omitempty"`
}

func (RetrieverOutput) Agent() AgentName { return AgentRetriever }

// ReasoningOutput is the factual terminal agent's answer.
type ReasoningOutput struct {
	Answer      string  `json:"answer"`
	SourcesUsed int     `json:"sources_used"`
	Confidence  float64 `json:"confidence,omitempty"`
}

func (ReasoningOutput) Agent() AgentName { return AgentReasoning }

// SimulationOutput is the counterfactual terminal agent's answer.
type SimulationOutput struct {
	Answer      string   `json:"answer"`
	Assumptions []string `json:"assumptions,omitempty"`
	SourcesUsed int      `json:"sources_used"`
}

func (SimulationOutput) Agent() AgentName { return AgentSimulation }

// TemporalOutput is the temporal terminal agent's answer.
type TemporalOutput struct {
	Answer      string   `json:"answer"`
	Timeline    []string `json:"timeline,omitempty"`
	SourcesUsed int      `json:"sources_used"`
}

func (TemporalOutput) Agent() AgentName { return AgentTemporal }

// GeneralKnowledgeOutput is the answer produced without document grounding.
type GeneralKnowledgeOutput struct {
	Answer     string `json:"answer"`
	Disclaimer string `json:"disclaimer,omitempty"`
}

func (GeneralKnowledgeOutput) Agent() AgentName { return AgentGeneralKnowledge }

// AgentTrace records one agent invocation within a query's orchestration.
// Traces are append-only during orchestration and frozen once the query
// completes; ExecutionOrder is a monotonically increasing integer per query.
type AgentTrace struct {
	Agent          AgentName   `json:"agent"`
	ExecutionOrder int         `json:"execution_order"`
	StartedAt      time.Time   `json:"started_at"`
	EndedAt        time.Time   `json:"ended_at"`
	DurationMs     int64       `json:"duration_ms"`
	Input          Metadata    `json:"input,omitempty"`
	Output         AgentOutput `json:"output,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// traceJSON is the persisted shape of a trace; the output payload is kept as
// raw JSON next to its agent tag so the union survives a round trip.
type traceJSON struct {
	Agent          AgentName       `json:"agent"`
	ExecutionOrder int             `json:"execution_order"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        time.Time       `json:"ended_at"`
	DurationMs     int64           `json:"duration_ms"`
	Input          Metadata        `json:"input,omitempty"`
	Output         json.RawMessage `json:"output,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler for AgentTrace.
func (t AgentTrace) MarshalJSON() ([]byte, error) {
	out := traceJSON{
		Agent:          t.Agent,
		ExecutionOrder: t.ExecutionOrder,
		StartedAt:      t.StartedAt,
		EndedAt:        t.EndedAt,
		DurationMs:     t.DurationMs,
		Input:          t.Input,
		Error:          t.Error,
	}
	if t.Output != nil {
		raw, err := json.Marshal(t.Output)
		if err != nil {
			return nil, err
		}
		out.Output = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for AgentTrace.
func (t *AgentTrace) UnmarshalJSON(data []byte) error {
	var in traceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.Agent = in.Agent
	t.ExecutionOrder = in.ExecutionOrder
	t.StartedAt = in.StartedAt
	t.EndedAt = in.EndedAt
	t.DurationMs = in.DurationMs
	t.Input = in.Input
	t.Error = in.Error
	t.Output = nil
	if len(in.Output) == 0 {
		return nil
	}
	var out AgentOutput
	switch in.Agent {
	case AgentRouter:
		out = &RouterOutput{}
	case AgentRetriever:
		out = &RetrieverOutput{}
	case AgentReasoning:
		out = &ReasoningOutput{}
	case AgentSimulation:
		out = &SimulationOutput{}
	case AgentTemporal:
		out = &TemporalOutput{}
	case AgentGeneralKnowledge:
		out = &GeneralKnowledgeOutput{}
	default:
		return nil
	}
	if err := json.Unmarshal(in.Output, out); err != nil {
		return err
	}
	t.Output = out
	return nil
}
