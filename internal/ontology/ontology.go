// Package ontology generates a single theme definition from a theme name
// using a JSON-mode chat completion.
package ontology

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"themescore/internal/logging"
	"themescore/internal/services"
	"themescore/internal/services/llm"
)

const systemPrompt = "You are a skilled assistant specialized in creating detailed theme ontologies. Follow the provided specifications exactly."

// Completer issues a JSON-only chat completion.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, opts services.GenerateOptions) (string, error)
}

// PromptRenderer renders the ontology prompt for a theme name.
type PromptRenderer interface {
	RenderOntology(themeName string) (string, error)
}

// Generator produces ontology entries.
type Generator struct {
	client   Completer
	renderer PromptRenderer
	opts     services.GenerateOptions
	logger   *slog.Logger
}

// NewGenerator wires a generator. MaxTokens and Temperature come from opts.
func NewGenerator(client Completer, renderer PromptRenderer, opts services.GenerateOptions, logger *slog.Logger) *Generator {
	return &Generator{
		client:   client,
		renderer: renderer,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "ontology"),
	}
}

// Generate returns the ontology for themeName as indented JSON. The model
// output must decode to a JSON object.
func (g *Generator) Generate(ctx context.Context, themeName string) (json.RawMessage, error) {
	themeName = strings.TrimSpace(themeName)
	if themeName == "" {
		return nil, errors.New("ontology: theme name required")
	}
	prompt, err := g.renderer.RenderOntology(themeName)
	if err != nil {
		return nil, err
	}

	g.logger.Info("generating ontology", logging.String("theme", themeName), logging.Int("max_tokens", g.opts.MaxTokens))
	content, err := g.client.CompleteJSON(ctx, systemPrompt, prompt, g.opts)
	if err != nil {
		return nil, fmt.Errorf("ontology: generate %q: %w", themeName, err)
	}

	var object map[string]any
	if err := llm.DecodeLLMJSON(content, &object); err != nil {
		return nil, fmt.Errorf("ontology: parse response as JSON: %w", err)
	}
	if object == nil {
		return nil, errors.New("ontology: response is not a JSON object")
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(object); err != nil {
		return nil, fmt.Errorf("ontology: encode: %w", err)
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
