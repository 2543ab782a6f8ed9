package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/counselkit/counsel/domain/repositories"
)

// MockGenerator is a placeholder advice generator for tests and offline
// runs. It streams a canned response in small fragments, the way the
// real provider does.
type MockGenerator struct{}

// NewMockGenerator creates a new mock advice generator.
func NewMockGenerator() repositories.AdviceGenerator {
	return &MockGenerator{}
}

// Generate implements repositories.AdviceGenerator.
func (g *MockGenerator) Generate(ctx context.Context, prompt string, thinkingMode bool) (<-chan repositories.AdviceChunk, error) {
	var response string
	switch {
	case strings.Contains(strings.ToLower(prompt), "rain"):
		response = "Aye, bring a coat."
	case thinkingMode:
		response = fmt.Sprintf("After some thought on %q: sleep on it, then act at first light.", prompt)
	default:
		response = "Keep it simple, do the next small thing well."
	}

	chunks := make(chan repositories.AdviceChunk, 4)

	go func() {
		defer close(chunks)
		for _, word := range strings.SplitAfter(response, " ") {
			select {
			case chunks <- repositories.AdviceChunk{Text: word}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}
