// Package llm provides an OpenRouter chat client used for scoring passes and
// ontology generation.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Generate: send a single user prompt, receive the model's text verbatim.
// Client.CompleteJSON: send system/user prompts, receive a JSON response.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: decode model output, tolerating code fences and stray prose.
//
// # Configuration
//
// Requires api_key and model, and optionally base_url, referer, title, timeout.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions, and
// network timeouts with exponential backoff (base 1s, max 10s). Attempts
// default to 5 and are overridden by Config.RetryAttempts; scoring runs set a
// single attempt so a failed pass is skipped rather than retried.
// Context cancellation aborts retries immediately.
//
// Failures are tagged with the services error markers (ErrTimeout,
// ErrConfiguration, ErrExternalTool) for classification by callers.
package llm
