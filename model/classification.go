package model

// QueryType is the category assigned to an incoming query.
type QueryType string

const (
	QueryTypeFactual        QueryType = "factual"
	QueryTypeCounterfactual QueryType = "counterfactual"
	QueryTypeTemporal       QueryType = "temporal"
	QueryTypeGeneral        QueryType = "general"
)

// Valid reports whether t is one of the four known query types.
func (t QueryType) Valid() bool {
	switch t {
	case QueryTypeFactual, QueryTypeCounterfactual, QueryTypeTemporal, QueryTypeGeneral:
		return true
	}
	return false
}

// QueryClassification is produced once per query and attached to the
// resulting message. It is immutable after construction.
type QueryClassification struct {
	Type               QueryType `json:"type"`
	Confidence         float64   `json:"confidence"`
	Reasoning          string    `json:"reasoning"`
	Keywords           []string  `json:"keywords,omitempty"`
	TemporalIndicators []string  `json:"temporal_indicators,omitempty"`
	GeneralFallback    bool      `json:"general_fallback,omitempty"`
}
