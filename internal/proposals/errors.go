package proposals

import "fmt"

// ConfigurationError reports a missing or empty input source. It is raised
// before any processing starts.
type ConfigurationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("input source %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DecodeError reports a Stage 1 file whose payload does not match the expected shape.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode stage 1 payload %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
