package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"themescore/internal/services/llm"
)

var requiredFields = []string{"score", "verdict", "rationale"}

// Score is the score a model returned. JSON numbers and numeric strings are
// normalized to Value; anything else ("high", "7/10") is kept verbatim in Raw.
type Score struct {
	Value   float64
	Numeric bool
	Raw     json.RawMessage
}

// MarshalJSON writes numeric scores as numbers and other scores unchanged.
func (s Score) MarshalJSON() ([]byte, error) {
	if s.Numeric {
		return json.Marshal(s.Value)
	}
	if isNull(s.Raw) {
		return []byte("null"), nil
	}
	return s.Raw, nil
}

// UnmarshalJSON accepts any JSON value.
func (s *Score) UnmarshalJSON(data []byte) error {
	*s = parseScore(data)
	return nil
}

func (s Score) String() string {
	if s.Numeric {
		return strconv.FormatFloat(s.Value, 'f', -1, 64)
	}
	return textValue(s.Raw)
}

// ScoreData is a successfully parsed verdict. Extra keeps any additional keys
// the model returned so they survive into the record.
type ScoreData struct {
	Score     Score
	Verdict   string
	Rationale string
	Extra     map[string]json.RawMessage
}

// MarshalJSON emits the verdict as a flat object including extra keys.
func (d ScoreData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		out[k] = v
	}
	out["score"] = d.Score
	out["verdict"] = d.Verdict
	out["rationale"] = d.Rationale
	return json.Marshal(out)
}

// Failure is the parsed payload of a degraded record.
type Failure struct {
	Error         string   `json:"error"`
	RawResponse   string   `json:"raw_response"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// Parse decodes a backend response into a verdict. Surrounding code fences
// (with or without a language tag) and prose around a single JSON object are
// tolerated. The score may be any non-null JSON value; see Score. Any failure
// is returned as a *ParseError.
func Parse(raw string) (ScoreData, error) {
	var fields map[string]json.RawMessage
	if err := llm.DecodeLLMJSON(raw, &fields); err != nil {
		return ScoreData{}, &ParseError{Text: raw, Err: err}
	}
	if fields == nil {
		return ScoreData{}, &ParseError{Text: raw, Err: errors.New("response is not a JSON object")}
	}

	var missing []string
	for _, key := range requiredFields {
		value, ok := fields[key]
		if !ok || isNull(value) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return ScoreData{}, &ParseError{Text: raw, Missing: missing}
	}

	data := ScoreData{
		Score:     parseScore(fields["score"]),
		Verdict:   textValue(fields["verdict"]),
		Rationale: textValue(fields["rationale"]),
	}
	for key, value := range fields {
		switch key {
		case "score", "verdict", "rationale":
			continue
		}
		if data.Extra == nil {
			data.Extra = map[string]json.RawMessage{}
		}
		data.Extra[key] = value
	}
	return data, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func parseScore(raw json.RawMessage) Score {
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return Score{Value: number, Numeric: true}
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return Score{Value: v, Numeric: true}
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return Score{Raw: append(json.RawMessage(nil), bytes.TrimSpace(raw)...)}
	}
	return Score{Raw: compact.Bytes()}
}

// textValue returns string values unquoted and anything else as compact JSON.
func textValue(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return compact.String()
}

// degraded builds the parsed payload written when Parse fails.
func degraded(raw string, err error) Failure {
	failure := Failure{Error: err.Error(), RawResponse: raw}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		failure.MissingFields = parseErr.Missing
	}
	return failure
}
