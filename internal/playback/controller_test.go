package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/counselkit/counsel/internal/pcm"
)

// fakeEngine records allocated sources so tests can drive completion
// and inspect teardown.
type fakeEngine struct {
	mu      sync.Mutex
	sources []*fakeSource
}

func (e *fakeEngine) NewSource(buf *pcm.Buffer) (Source, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	src := &fakeSource{}
	e.sources = append(e.sources, src)
	return src, nil
}

func (e *fakeEngine) lastSource() *fakeSource {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sources) == 0 {
		return nil
	}
	return e.sources[len(e.sources)-1]
}

type fakeSource struct {
	mu         sync.Mutex
	started    bool
	stopped    bool
	onComplete func()
}

func (s *fakeSource) Start(onComplete func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.onComplete = onComplete
	return nil
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *fakeSource) finish() {
	s.mu.Lock()
	hook := s.onComplete
	stopped := s.stopped
	s.mu.Unlock()
	if hook != nil && !stopped {
		hook()
	}
}

func testBuffer(frames int) *pcm.Buffer {
	return &pcm.Buffer{
		Channels:   1,
		SampleRate: pcm.DefaultSampleRate,
		Frames:     frames,
		Data:       [][]float32{make([]float32, frames)},
	}
}

func TestControllerSpeakRevealsCaptions(t *testing.T) {
	engine := &fakeEngine{}
	mock := clock.NewMock()
	controller := NewController(engine, mock, zap.NewNop())

	var captions []string
	controller.SetHooks(Hooks{
		OnCaption: func(displayed string) {
			captions = append(captions, displayed)
		},
	})

	// 24000 frames at 24kHz = 1s. "bring a coat" has 5 tokens, 200ms each.
	if err := controller.Speak(testBuffer(24000), "bring a coat"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	if !controller.Speaking() {
		t.Error("Expected Speaking() true after Speak")
	}

	mock.Add(200 * time.Millisecond)
	if len(captions) != 1 || captions[0] != "bring" {
		t.Fatalf("Expected first caption \"bring\", got %q", captions)
	}

	mock.Add(800 * time.Millisecond)
	if len(captions) != 5 {
		t.Fatalf("Expected 5 caption updates, got %d", len(captions))
	}

	if captions[4] != "bring a coat" {
		t.Errorf("Expected final caption \"bring a coat\", got %q", captions[4])
	}
}

func TestControllerNaturalCompletionForcesFullText(t *testing.T) {
	engine := &fakeEngine{}
	mock := clock.NewMock()
	controller := NewController(engine, mock, zap.NewNop())

	var finished string
	controller.SetHooks(Hooks{
		OnFinished: func(fullText string) {
			finished = fullText
		},
	})

	if err := controller.Speak(testBuffer(24000), "bring a coat"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	// Audio finishes while captions are still lagging behind.
	mock.Add(200 * time.Millisecond)
	engine.lastSource().finish()

	if finished != "bring a coat" {
		t.Errorf("Expected completion to force full text, got %q", finished)
	}

	if controller.Speaking() {
		t.Error("Expected Speaking() false after natural completion")
	}

	if !engine.lastSource().stopped {
		t.Error("Expected source released after completion")
	}

	// No caption tick from the retired session fires afterwards.
	mock.Add(10 * time.Second)
}

func TestControllerStopIsIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	controller := NewController(engine, clock.NewMock(), zap.NewNop())

	// Stop with no active session is a no-op.
	controller.Stop()

	if err := controller.Speak(testBuffer(12000), "hello"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	controller.Stop()
	if controller.Speaking() {
		t.Error("Expected Speaking() false after Stop")
	}
	if !engine.lastSource().stopped {
		t.Error("Expected source stopped")
	}

	// Second Stop leaves state unchanged.
	controller.Stop()
}

func TestControllerRejectsConcurrentSessions(t *testing.T) {
	engine := &fakeEngine{}
	controller := NewController(engine, clock.NewMock(), zap.NewNop())

	if err := controller.Speak(testBuffer(12000), "first"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	if err := controller.Speak(testBuffer(12000), "second"); err == nil {
		t.Fatal("Expected error starting a session over an active one")
	}

	// The rejected source must not leak.
	if !engine.lastSource().stopped {
		t.Error("Expected rejected source to be released")
	}
}

func TestControllerStopCancelsOldSessionTicks(t *testing.T) {
	engine := &fakeEngine{}
	mock := clock.NewMock()
	controller := NewController(engine, mock, zap.NewNop())

	var captions []string
	controller.SetHooks(Hooks{
		OnCaption: func(displayed string) {
			captions = append(captions, displayed)
		},
	})

	if err := controller.Speak(testBuffer(24000), "first reply text"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	mock.Add(200 * time.Millisecond)
	before := len(captions)

	controller.Stop()
	if err := controller.Speak(testBuffer(24000), "second"); err != nil {
		t.Fatalf("Speak() after Stop error = %v", err)
	}

	mock.Add(5 * time.Second)
	for _, c := range captions[before:] {
		if len(c) > len("second") {
			t.Errorf("Caption %q leaked from the stopped session", c)
		}
	}

	if captions[len(captions)-1] != "second" {
		t.Errorf("Expected final caption \"second\", got %q", captions[len(captions)-1])
	}
}
