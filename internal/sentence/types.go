package sentence

import (
	"context"
	"fmt"

	"github.com/Vijayrathan/asl-gestr/internal/config"
)

// instruction is the fixed header sent to the model. The provider must
// answer with exactly one sentence and nothing else.
const instruction = "You receive a sequence of fingerspelled letters from an ASL recognizer. " +
	"Form exactly one natural English sentence from them. " +
	"Reply with the sentence only, no commentary or explanations."

// Generator turns a session's accumulated letters into one sentence.
type Generator interface {
	Sentence(ctx context.Context, letters string) (string, error)
}

// NewFromConfig selects the configured backend.
func NewFromConfig(cfg config.SentenceConfig) (Generator, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockGenerator(), nil
	case "ollama":
		return NewOllamaGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("unknown sentence mode %q", cfg.Mode)
	}
}
