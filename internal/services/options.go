package services

// GenerateOptions carries the sampling parameters for one generation request.
// Zero values are omitted from the request and left to the backend default.
type GenerateOptions struct {
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	MaxTokens     int
	// JSON asks the backend to constrain output to a JSON object where supported.
	JSON bool
}
