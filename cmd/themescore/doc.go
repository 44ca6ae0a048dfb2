// Package main hosts the themescore CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds the logger, theme
// catalog and generation backend, and hands them to the internal packages:
// score runs the Stage 2 scoring loop, results lists what a run wrote,
// catalog manages theme sources, ontology drafts a single theme definition,
// and check reports whether the environment is ready for a run.
//
// Keep this package lean: behaviour lives in internal packages and commands
// only translate flags into their inputs.
package main
