package tts

import (
	"context"
	"encoding/base64"
	"math"

	"go.uber.org/zap"

	"github.com/counselkit/counsel/domain/repositories"
	"github.com/counselkit/counsel/internal/pcm"
)

// mockFramesPerRune sizes the generated audio so longer advice "speaks"
// longer, roughly 80ms per character.
const mockFramesPerRune = pcm.DefaultSampleRate * 8 / 100

// MockSynthesizer is a placeholder speech synthesizer producing a low
// sine tone sized to the text, in the service's PCM wire format.
type MockSynthesizer struct {
	logger *zap.Logger
}

// NewMockSynthesizer creates a new mock speech synthesizer.
func NewMockSynthesizer(logger *zap.Logger) repositories.SpeechSynthesizer {
	return &MockSynthesizer{logger: logger}
}

// Synthesize implements repositories.SpeechSynthesizer.
func (s *MockSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	s.logger.Info("Generating mock speech", zap.Int("textLength", len(text)))

	frames := len([]rune(text)) * mockFramesPerRune
	payload := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		sample := int16(8000 * math.Sin(2*math.Pi*220*float64(i)/float64(pcm.DefaultSampleRate)))
		payload[i*2] = byte(sample)
		payload[i*2+1] = byte(sample >> 8)
	}

	return base64.StdEncoding.EncodeToString(payload), nil
}
