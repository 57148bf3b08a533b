package speech

import (
	"context"
	"fmt"

	"github.com/Vijayrathan/asl-gestr/internal/config"
)

// Synthesizer renders text as a WAV byte payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// NewFromConfig selects the configured backend.
func NewFromConfig(cfg config.SpeechConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockSynth(cfg.SampleRate, cfg.Channels), nil
	case "exec":
		return NewExecSynth(cfg)
	default:
		return nil, fmt.Errorf("unknown speech mode %q", cfg.Mode)
	}
}
