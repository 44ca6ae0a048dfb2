package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingTarget marks a proposal with neither a target id nor a target name.
var ErrMissingTarget = errors.New("proposal has no target id or name")

// GenerationError reports a failed backend call for one pass.
type GenerationError struct {
	ComboID       string
	ProposalIndex int
	PassIndex     int
	Err           error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s proposal %d pass %d: %v", e.ComboID, e.ProposalIndex, e.PassIndex, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ParseError reports a backend response that is not a valid verdict. Text is
// the response exactly as received.
type ParseError struct {
	Text    string
	Missing []string
	Err     error
}

func (e *ParseError) Error() string {
	if len(e.Missing) > 0 {
		return "scoring response missing fields: " + strings.Join(e.Missing, ", ")
	}
	if e.Err != nil {
		return "unparseable scoring response: " + e.Err.Error()
	}
	return "invalid scoring response"
}

func (e *ParseError) Unwrap() error { return e.Err }
