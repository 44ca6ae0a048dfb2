package proposals

import (
	"encoding/json"
	"strings"
)

// Batch is one Stage 1 output file: a set of source themes and the target
// proposals generated for them. Batches are immutable once loaded.
type Batch struct {
	ComboID     string
	SampleIndex int
	Sources     []string
	Proposals   []Proposal
	SourcePath  string
}

// Proposal is one candidate target for a batch's sources.
type Proposal struct {
	TargetID       string
	TargetName     string
	Rationale      string
	ConfidenceHint json.RawMessage
	// Raw is the proposal exactly as it appeared in the input file.
	Raw json.RawMessage
}

// Target returns the effective id and name, each falling back to the other.
// ok is false when the proposal names no target at all.
func (p Proposal) Target() (id, name string, ok bool) {
	id = strings.TrimSpace(p.TargetID)
	name = strings.TrimSpace(p.TargetName)
	if id == "" {
		id = name
	}
	if name == "" {
		name = id
	}
	return id, name, id != ""
}
