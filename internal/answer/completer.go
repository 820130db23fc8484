package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitCompleter generates answers through a Genkit model.
type GenkitCompleter struct {
	g     *genkit.Genkit
	model string
}

// NewGenkitCompleter creates a completer for the given model name.
// Bare model names get the googleai/ provider prefix.
func NewGenkitCompleter(g *genkit.Genkit, model string) *GenkitCompleter {
	if !strings.Contains(model, "/") {
		model = "googleai/" + model
	}
	return &GenkitCompleter{g: g, model: model}
}

// Complete runs a single-turn generation.
func (c *GenkitCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return response.Text(), nil
}
