// Package scoring runs the Stage 2 control loop: for every proposal in every
// input batch it resolves the source and target themes, renders a prompt,
// asks the generation backend for a verdict once per pass, and persists one
// record per pass.
//
// # Pass lifecycle
//
// Each pass moves through PENDING, RESOLVED, GENERATING, PARSING, then either
// SCORED or PARSE_FAILED, and ends WRITTEN. A pass whose record already exists
// ends SKIPPED_EXISTING before any backend call, which is what makes an
// interrupted run resumable by simply running it again.
//
// # Failure policy
//
// Unknown sources skip the batch. Missing or unresolvable targets skip the
// proposal. A generation failure abandons the remaining passes of that
// proposal. A response that cannot be parsed still produces a degraded
// record carrying the raw text. Record write failures stop the run.
package scoring
