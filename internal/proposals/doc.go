// Package proposals discovers and decodes Stage 1 proposal batches.
//
// A Selector chooses the input directory: either an explicit path or the
// lexically latest (most recent timestamp) subdirectory of the raw input
// root. LoadDir decodes every *.json file in that directory into a Batch,
// ordered by file name, validating the payload shape once at the boundary.
// Window applies the start offset and record limit used for manual resumption.
package proposals
