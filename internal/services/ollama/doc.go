// Package ollama talks to a local Ollama server's generate endpoint.
//
// Generate posts a non-streaming /api/generate request with the caller's
// sampling options and returns the "response" text verbatim. HealthCheck
// lists installed models via /api/tags and confirms the configured model is
// present. Failures carry the services error markers.
package ollama
