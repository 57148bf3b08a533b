package sentence

import (
	"context"
	"strings"
)

type mockGenerator struct{}

func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Sentence(_ context.Context, letters string) (string, error) {
	letters = strings.TrimSpace(letters)
	if letters == "" {
		return "[mock sentence from no letters]", nil
	}
	return "[mock sentence from letters " + letters + "]", nil
}
