package repositories

import "context"

// SpeechSynthesizer abstracts the remote speech service. Synthesize
// returns a base64-encoded payload of 16-bit little-endian mono PCM at
// 24 kHz, or an empty string when the service yields no audio for the
// text. An empty result is a recognized outcome, not an error.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}
