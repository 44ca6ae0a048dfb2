package scoring

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Options are the generation settings fixed for a run.
type Options struct {
	Model         string
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	Passes        int
}

// Validate rejects options a run cannot start with.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Model) == "" {
		return fmt.Errorf("scoring options: model is required")
	}
	if o.Passes < 1 {
		return fmt.Errorf("scoring options: passes must be >= 1, got %d", o.Passes)
	}
	return nil
}

// OptionsSnapshot is the sampling configuration stamped on each record.
type OptionsSnapshot struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

// ProposalSnapshot copies the proposal that produced a record.
type ProposalSnapshot struct {
	SourceRecord   string          `json:"source_record"`
	ProposalIndex  int             `json:"proposal_index"`
	Rationale      string          `json:"rationale"`
	ConfidenceHint json.RawMessage `json:"confidence_hint"`
	Raw            json.RawMessage `json:"raw"`
}

// Record is the persisted result of one scoring pass. Parsed holds either a
// ScoreData or, for degraded records, a Failure.
type Record struct {
	ScoringModel  string           `json:"scoring_model"`
	PromptVersion string           `json:"prompt_version"`
	RunID         string           `json:"run_id,omitempty"`
	Sources       []string         `json:"sources"`
	Target        string           `json:"target"`
	TargetName    string           `json:"target_name"`
	Proposal      ProposalSnapshot `json:"proposal"`
	PassIndex     int              `json:"pass_index"`
	Options       OptionsSnapshot  `json:"options"`
	RawResponse   string           `json:"raw_response"`
	Parsed        any              `json:"parsed"`
	Prompt        string           `json:"prompt,omitempty"`
}

// StoredRecord is a record read back from disk for reporting.
type StoredRecord struct {
	ScoringModel  string   `json:"scoring_model"`
	PromptVersion string   `json:"prompt_version"`
	RunID         string   `json:"run_id"`
	Sources       []string `json:"sources"`
	Target        string   `json:"target"`
	TargetName    string   `json:"target_name"`
	PassIndex     int      `json:"pass_index"`
	RawResponse   string   `json:"raw_response"`
	Parsed        struct {
		Score     *Score `json:"score"`
		Verdict   string `json:"verdict"`
		Rationale string `json:"rationale"`
		Error     string `json:"error"`
	} `json:"parsed"`
}

// Degraded reports whether the record holds a parse failure instead of a verdict.
func (r StoredRecord) Degraded() bool {
	return r.Parsed.Error != "" || r.Parsed.Score == nil
}
