package proposals

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type rawPayload struct {
	Sources     []string `json:"sources"`
	SampleIndex *int     `json:"sample_index"`
	Parsed      *struct {
		Proposals []json.RawMessage `json:"proposals"`
	} `json:"parsed"`
}

// Load resolves the selector and decodes its batches.
func Load(selector Selector) (string, []Batch, error) {
	dir, err := selector.Resolve()
	if err != nil {
		return "", nil, err
	}
	batches, err := LoadDir(dir)
	if err != nil {
		return dir, nil, err
	}
	return dir, batches, nil
}

// LoadDir decodes every *.json file in dir, ordered by file name. A directory
// without batch files is a ConfigurationError; a malformed file is a DecodeError.
func LoadDir(dir string) ([]Batch, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, &ConfigurationError{Path: dir, Reason: "list batch files", Err: err}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, &ConfigurationError{Path: dir, Reason: "no *.json batch files found"}
	}

	batches := make([]Batch, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read stage 1 payload %s: %w", path, err)
		}
		batch, err := DecodeBatch(path, data)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// DecodeBatch validates one Stage 1 payload. The combo id is the file stem.
func DecodeBatch(path string, data []byte) (Batch, error) {
	var payload rawPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Batch{}, &DecodeError{Path: path, Err: err}
	}

	batch := Batch{
		ComboID:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Sources:    payload.Sources,
		SourcePath: path,
	}
	if payload.SampleIndex != nil {
		if *payload.SampleIndex < 0 {
			return Batch{}, &DecodeError{Path: path, Err: fmt.Errorf("sample_index must be >= 0, got %d", *payload.SampleIndex)}
		}
		batch.SampleIndex = *payload.SampleIndex
	}
	if payload.Parsed != nil {
		batch.Proposals = make([]Proposal, 0, len(payload.Parsed.Proposals))
		for _, raw := range payload.Parsed.Proposals {
			batch.Proposals = append(batch.Proposals, decodeProposal(raw))
		}
	}
	return batch, nil
}

// decodeProposal never fails: a proposal that is not an object, or whose
// fields have unexpected types, simply ends up without a usable target and is
// skipped by the scorer with a logged reason.
func decodeProposal(raw json.RawMessage) Proposal {
	proposal := Proposal{Raw: append(json.RawMessage(nil), raw...)}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return proposal
	}
	proposal.TargetID = scalarString(fields["target_id"])
	proposal.TargetName = scalarString(fields["target_name"])
	proposal.Rationale = strings.TrimSpace(scalarString(fields["rationale"]))
	if hint, ok := fields["confidence_hint"]; ok {
		proposal.ConfidenceHint = append(json.RawMessage(nil), hint...)
	}
	return proposal
}

func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// NoLimit passed to Window selects every batch from start on.
const NoLimit = -1

// Window returns the batches at positions [start, start+limit). A negative
// limit means no limit; a limit of 0 selects nothing. The slice shares storage
// with batches.
func Window(batches []Batch, start, limit int) []Batch {
	if start < 0 {
		start = 0
	}
	if start >= len(batches) || limit == 0 {
		return nil
	}
	out := batches[start:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}
