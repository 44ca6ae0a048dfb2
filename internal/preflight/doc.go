// Package preflight provides readiness checks for the filesystem paths, theme
// catalog, and generation backends a scoring run depends on.
//
// The "themescore check" command runs RunAll and renders the results; the
// individual checks are also usable on their own.
package preflight
