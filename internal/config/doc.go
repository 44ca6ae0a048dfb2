// Package config loads, normalizes, and validates themescore configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and OLLAMA_HOST. The Config type centralizes the data
// roots, theme catalog location, scoring options, and backend credentials so a
// scoring run can be assembled from one value instead of package globals.
package config
