// Package prompts renders the text sent to generation backends.
//
// Default templates are embedded; a configured template file replaces them.
// Templates use text/template and may call the "json" function to embed a
// value as indented JSON. Rendering is deterministic for identical inputs.
package prompts
