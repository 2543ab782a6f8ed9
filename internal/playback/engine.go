package playback

import "github.com/counselkit/counsel/internal/pcm"

// Engine abstracts the audio output device. Implementations create one
// underlying engine context lazily and reuse it across sessions; the
// active Source is exclusively owned by the current session.
type Engine interface {
	// NewSource allocates a playback source bound to the decoded
	// buffer. Allocation failure is fatal for the submission that
	// requested it.
	NewSource(buf *pcm.Buffer) (Source, error)
}

// Source is a single playable instance of a decoded buffer.
type Source interface {
	// Start begins playback. onComplete fires exactly once when the
	// audio finishes on its own; it does not fire after Stop.
	Start(onComplete func()) error

	// Stop halts playback and releases the underlying resources.
	// Safe to call repeatedly and after natural completion.
	Stop()
}
