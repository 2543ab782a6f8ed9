package websocket

import (
	"encoding/json"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/counselkit/counsel/internal/pcm"
	"github.com/counselkit/counsel/internal/playback"
)

// audioChunkSize is the size of each binary PCM frame sent to the
// client. Small enough that a stop lands between chunks quickly.
const audioChunkSize = 4096

// sender is the outbound half of a websocket client.
type sender interface {
	enqueue(data WriteData) bool
}

// StreamEngine implements playback.Engine by streaming PCM to a
// connected client instead of playing it locally. Completion is
// driven by a timer armed for the buffer's duration, so the server's
// caption clock and the client's playhead stay aligned.
type StreamEngine struct {
	sink   sender
	clock  clock.Clock
	logger *zap.Logger
}

// NewStreamEngine creates a playback engine bound to one client connection.
func NewStreamEngine(sink sender, clk clock.Clock, logger *zap.Logger) *StreamEngine {
	return &StreamEngine{
		sink:   sink,
		clock:  clk,
		logger: logger,
	}
}

// Ensure StreamEngine implements the playback.Engine interface
var _ playback.Engine = (*StreamEngine)(nil)

// NewSource implements playback.Engine.
func (e *StreamEngine) NewSource(buf *pcm.Buffer) (playback.Source, error) {
	return &streamSource{
		engine: e,
		buf:    buf,
		data:   buf.Interleave(),
	}, nil
}

type streamSource struct {
	engine *StreamEngine
	buf    *pcm.Buffer
	data   []byte

	mu      sync.Mutex
	timer   *clock.Timer
	stopped bool
}

// Start implements playback.Source. The whole buffer is flushed to the
// send queue up front; the client buffers and plays it at its own
// pace while the completion timer tracks the nominal duration.
func (s *streamSource) Start(onComplete func()) error {
	start := CreateSpeakingStartMessage(s.buf.SampleRate, s.buf.Channels, s.buf.Frames, s.buf.Duration())
	s.sendJSON(start)

	for offset := 0; offset < len(s.data); offset += audioChunkSize {
		end := offset + audioChunkSize
		if end > len(s.data) {
			end = len(s.data)
		}
		if !s.engine.sink.enqueue(WriteData{
			Type:    websocket.BinaryMessage,
			Payload: s.data[offset:end],
		}) {
			s.engine.logger.Warn("Dropped audio chunk, send queue full")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.timer = s.engine.clock.AfterFunc(s.buf.Duration(), func() {
		s.sendJSON(CreateSpeakingEndMessage(false))
		onComplete()
	})
	return nil
}

// Stop implements playback.Source.
func (s *streamSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	timer := s.timer
	s.mu.Unlock()

	if timer != nil && timer.Stop() {
		s.sendJSON(CreateSpeakingEndMessage(true))
	}
}

func (s *streamSource) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.engine.logger.Error("Failed to marshal stream message", zap.Error(err))
		return
	}
	if !s.engine.sink.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload}) {
		s.engine.logger.Warn("Dropped stream message, send queue full")
	}
}
