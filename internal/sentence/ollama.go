package sentence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Vijayrathan/asl-gestr/internal/config"
)

type ollamaGenerator struct {
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func NewOllamaGenerator(cfg config.SentenceConfig) Generator {
	return &ollamaGenerator{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      http.DefaultClient,
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Sentence is a single synchronous request/response exchange. Remote errors
// are surfaced verbatim; there is no retry.
func (g *ollamaGenerator) Sentence(ctx context.Context, letters string) (string, error) {
	payload := ollamaRequest{
		Model:  g.model,
		Prompt: "Letters: " + letters,
		System: instruction,
		Stream: false,
		Options: ollamaOptions{
			Temperature: g.temperature,
			NumPredict:  g.maxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama returned status %s", resp.Status)
	}

	var decoded ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	sentence := strings.TrimSpace(decoded.Response)
	if sentence == "" {
		return "", fmt.Errorf("ollama returned an empty completion")
	}
	return sentence, nil
}
