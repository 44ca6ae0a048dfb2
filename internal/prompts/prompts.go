package prompts

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"themescore/internal/themes"
)

// Version is stamped on every score record so results from different prompt
// revisions can be told apart.
const Version = "1.0"

//go:embed scoring.tmpl
var defaultScoringTemplate string

//go:embed ontology.tmpl
var defaultOntologyTemplate string

// ScoringInput is the data available to the scoring template.
type ScoringInput struct {
	Sources   []themes.Theme
	Target    themes.Theme
	Rationale string
}

// OntologyInput is the data available to the ontology template.
type OntologyInput struct {
	ThemeName string
}

// Renderer renders one parsed template.
type Renderer struct {
	name string
	tmpl *template.Template
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	},
	"inc": func(i int) int { return i + 1 },
}

// NewScoringRenderer parses the template at path, or the embedded default when
// path is empty.
func NewScoringRenderer(path string) (*Renderer, error) {
	return newRenderer("scoring", path, defaultScoringTemplate)
}

// NewOntologyRenderer parses the template at path, or the embedded default when
// path is empty.
func NewOntologyRenderer(path string) (*Renderer, error) {
	return newRenderer("ontology", path, defaultOntologyTemplate)
}

// Parse builds a renderer from template text.
func Parse(name, text string) (*Renderer, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s prompt template: %w", name, err)
	}
	return &Renderer{name: name, tmpl: tmpl}, nil
}

func newRenderer(name, path, fallback string) (*Renderer, error) {
	text := fallback
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s prompt template: %w", name, err)
		}
		text = string(data)
	}
	return Parse(name, text)
}

// Render executes the template with data.
func (r *Renderer) Render(data any) (string, error) {
	var b strings.Builder
	if err := r.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", r.name, err)
	}
	return strings.TrimSpace(b.String()) + "\n", nil
}

// RenderScoring renders the scoring prompt for one proposal.
func (r *Renderer) RenderScoring(sources []themes.Theme, target themes.Theme, rationale string) (string, error) {
	return r.Render(ScoringInput{Sources: sources, Target: target, Rationale: rationale})
}

// RenderOntology renders the ontology prompt for a theme name.
func (r *Renderer) RenderOntology(themeName string) (string, error) {
	return r.Render(OntologyInput{ThemeName: themeName})
}
