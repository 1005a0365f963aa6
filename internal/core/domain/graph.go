package domain

// GraphSummary is what the summarize tool reports about a GraphDef.
type GraphSummary struct {
	NodeCount       int            `json:"node_count" yaml:"node_count"`
	OpCounts        map[string]int `json:"op_counts" yaml:"op_counts"`
	ConstParameters int64          `json:"const_parameters" yaml:"const_parameters"`
	Inputs          []string       `json:"inputs" yaml:"inputs"`
	Outputs         []string       `json:"outputs" yaml:"outputs"`
}

// OpCount returns the number of nodes of the given op type.
func (s *GraphSummary) OpCount(op string) int {
	if s == nil || s.OpCounts == nil {
		return 0
	}
	return s.OpCounts[op]
}
