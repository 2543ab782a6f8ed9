package repositories

import "context"

// AdviceChunk is one fragment of a streamed advice response. A chunk
// with a non-nil Err terminates the stream.
type AdviceChunk struct {
	Text string
	Err  error
}

// AdviceGenerator abstracts the remote text-generation service. Each
// Generate call produces a fresh, finite stream of text fragments; the
// channel is closed when the response is complete. thinkingMode is
// forwarded to the provider opaquely.
type AdviceGenerator interface {
	Generate(ctx context.Context, prompt string, thinkingMode bool) (<-chan AdviceChunk, error)
}
