// Package logging assembles structured slog loggers used across themescore.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and defines the standard field keys (run, combo, proposal, and pass
// identifiers) so scoring log lines can be filtered consistently. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
