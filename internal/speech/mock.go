package speech

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// mockSynth produces a short silent WAV clip so the full sentence pipeline
// can run without a real TTS backend.
type mockSynth struct {
	sampleRate int
	channels   int
}

func NewMockSynth(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels}
}

func (m *mockSynth) Synthesize(_ context.Context, _, _ string) ([]byte, error) {
	file, err := os.CreateTemp("", "gestr_mock_tts_*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp wav file: %w", err)
	}
	name := file.Name()
	defer os.Remove(name)

	// Half a second of silence.
	buffer := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: m.channels, SampleRate: m.sampleRate},
		Data:   make([]int, m.sampleRate*m.channels/2),
	}
	enc := wav.NewEncoder(file, m.sampleRate, 16, m.channels, 1)
	if err := enc.Write(buffer); err != nil {
		file.Close()
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, err
	}

	return os.ReadFile(name)
}
