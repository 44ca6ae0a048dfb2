// Package services defines the contract shared by the text-generation backend
// clients (Ollama, OpenRouter) and their callers.
//
// Key responsibilities:
//   - GenerateOptions, the sampling parameters a caller fixes for a request.
//   - Structured error markers plus the Wrap helper, so callers can tell a
//     timeout from a misconfiguration from a backend fault with errors.Is.
//   - A request-id context helper that clients forward as X-Request-ID.
package services
