package ai

import (
	"context"
)

// Generator sends a single prompt to a language model and returns its textual answer.
type Generator interface {
	GenerateContent(ctx context.Context, systemInstruction, message string) (string, error)
	Model() string
}
