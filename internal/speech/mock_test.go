package speech

import (
	"bytes"
	"context"
	"testing"

	"github.com/Vijayrathan/asl-gestr/internal/config"
)

func testConfig() config.SpeechConfig {
	return config.Default().Speech
}

func TestMockSynthProducesWav(t *testing.T) {
	synth := NewMockSynth(22050, 1)
	data, err := synth.Synthesize(context.Background(), "hello", "en-US")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected audio bytes")
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatalf("expected RIFF header, got %q", data[:4])
	}
}

func TestNewFromConfigRejectsUnknownMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = "smoke-signals"
	if _, err := NewFromConfig(cfg); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestNewExecSynthRejectsEmptyCommand(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = "exec"
	cfg.Command = ""
	if _, err := NewExecSynth(cfg); err == nil {
		t.Fatal("expected error for empty command")
	}
}
