package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/Vijayrathan/asl-gestr/internal/config"
)

// execSynth runs a one-shot synthesis command per request: a JSON request on
// stdin, one JSON response on stdout carrying the WAV payload base64-encoded.
type execSynth struct {
	cmd        []string
	sampleRate int
	channels   int
	mu         sync.Mutex
}

type execRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type execResponse struct {
	WAVBase64 string `json:"wav_base64"`
	Error     string `json:"error,omitempty"`
}

func NewExecSynth(cfg config.SpeechConfig) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}
	return &execSynth{cmd: args, sampleRate: cfg.SampleRate, channels: cfg.Channels}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	input, err := json.Marshal(execRequest{
		Text:       text,
		Voice:      voice,
		SampleRate: e.sampleRate,
		Channels:   e.channels,
	})
	if err != nil {
		return nil, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("speech command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(bytes.TrimSpace(output), &resp); err != nil {
		return nil, fmt.Errorf("decode speech response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("speech synthesis: %s", resp.Error)
	}
	wav, err := base64.StdEncoding.DecodeString(resp.WAVBase64)
	if err != nil {
		return nil, fmt.Errorf("decode wav payload: %w", err)
	}
	if len(wav) == 0 {
		return nil, fmt.Errorf("speech command produced no audio")
	}
	return wav, nil
}
