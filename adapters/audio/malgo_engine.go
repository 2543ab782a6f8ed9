package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/counselkit/counsel/internal/pcm"
	"github.com/counselkit/counsel/internal/playback"
)

// MalgoEngine implements the playback.Engine interface using malgo.
// The malgo context is created lazily on first use and shared by every
// source the engine allocates.
type MalgoEngine struct {
	logger *zap.Logger

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
}

// NewMalgoEngine creates a new malgo-backed playback engine.
func NewMalgoEngine(logger *zap.Logger) *MalgoEngine {
	return &MalgoEngine{logger: logger}
}

// Ensure MalgoEngine implements the playback.Engine interface
var _ playback.Engine = (*MalgoEngine)(nil)

func (e *MalgoEngine) context() (*malgo.AllocatedContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.malgoCtx != nil {
		return e.malgoCtx, nil
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	e.malgoCtx = malgoCtx
	e.logger.Info("Audio playback context initialized")
	return malgoCtx, nil
}

// Close releases the shared malgo context. Sources must be stopped
// first.
func (e *MalgoEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.malgoCtx != nil {
		_ = e.malgoCtx.Uninit()
		e.malgoCtx.Free()
		e.malgoCtx = nil
	}
}

// NewSource implements playback.Engine.
func (e *MalgoEngine) NewSource(buf *pcm.Buffer) (playback.Source, error) {
	malgoCtx, err := e.context()
	if err != nil {
		return nil, err
	}

	if buf.Frames == 0 {
		return nil, fmt.Errorf("cannot allocate a source for an empty buffer")
	}

	return &malgoSource{
		malgoCtx:   malgoCtx,
		data:       buf.Interleave(),
		channels:   uint32(buf.Channels),
		sampleRate: uint32(buf.SampleRate),
		logger:     e.logger,
	}, nil
}

// malgoSource plays one interleaved PCM buffer on a dedicated device.
type malgoSource struct {
	malgoCtx   *malgo.AllocatedContext
	data       []byte
	channels   uint32
	sampleRate uint32
	logger     *zap.Logger

	mu       sync.Mutex
	device   *malgo.Device
	pos      int
	stopped  bool
	complete sync.Once
}

// Start implements playback.Source.
func (s *malgoSource) Start(onComplete func()) error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = s.channels
	deviceConfig.SampleRate = s.sampleRate

	frameSize := int(s.channels) * 2

	var callbacks malgo.DeviceCallbacks
	callbacks.Data = func(pOutputSample, pInputSamples []byte, framecount uint32) {
		s.mu.Lock()
		n := copy(pOutputSample, s.data[s.pos:])
		s.pos += n
		done := s.pos >= len(s.data)
		s.mu.Unlock()

		// Zero-fill the remainder so the device plays silence past the
		// end of the buffer instead of garbage.
		for i := n; i < int(framecount)*frameSize; i++ {
			pOutputSample[i] = 0
		}

		if done {
			// The device cannot be torn down from inside its own data
			// callback.
			go s.finish(onComplete)
		}
	}

	device, err := malgo.InitDevice(s.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	s.mu.Lock()
	s.device = device
	s.mu.Unlock()

	if err := device.Start(); err != nil {
		device.Uninit()
		s.mu.Lock()
		s.device = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

// finish fires the natural-completion hook unless the source was
// stopped first.
func (s *malgoSource) finish(onComplete func()) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	s.complete.Do(func() {
		if onComplete != nil {
			onComplete()
		}
	})
}

// Stop implements playback.Source.
func (s *malgoSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	device := s.device
	s.device = nil
	s.mu.Unlock()

	if device != nil {
		if err := device.Stop(); err != nil {
			s.logger.Warn("Failed to stop playback device", zap.Error(err))
		}
		device.Uninit()
	}
}
