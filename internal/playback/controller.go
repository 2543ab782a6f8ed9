package playback

import (
	"fmt"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/counselkit/counsel/internal/captions"
	"github.com/counselkit/counsel/internal/pcm"
)

// Hooks receive display updates from the controller. OnCaption gets the
// full displayed text after each caption tick; OnFinished fires on
// natural completion, after the displayed text has been forced to the
// complete response.
type Hooks struct {
	OnCaption  func(displayed string)
	OnFinished func(fullText string)
}

// session is the mutable unit of "currently speaking" state: the active
// audio source, the caption schedule, and the reveal progress. At most
// one session exists at a time.
type session struct {
	id        uuid.UUID
	source    Source
	schedule  *captions.Schedule
	fullText  string
	displayed strings.Builder
}

// Controller owns the single active speaking session. Speak and Stop
// enforce the at-most-one-session invariant; stale callbacks from a
// retired session are dropped by an identity check against the current
// one.
type Controller struct {
	engine Engine
	clock  clock.Clock
	logger *zap.Logger
	hooks  Hooks

	mu      sync.Mutex
	current *session
}

// NewController creates a playback controller on top of an audio engine.
func NewController(engine Engine, clk clock.Clock, logger *zap.Logger) *Controller {
	return &Controller{
		engine: engine,
		clock:  clk,
		logger: logger,
	}
}

// SetHooks registers display callbacks. Must be called before Speak.
func (c *Controller) SetHooks(hooks Hooks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = hooks
}

// Speaking reports whether a session is currently active.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Speak starts a new speaking session for the decoded buffer. The
// caller must have stopped any previous session first; starting over an
// active session is an error.
func (c *Controller) Speak(buf *pcm.Buffer, fullText string) error {
	source, err := c.engine.NewSource(buf)
	if err != nil {
		return fmt.Errorf("failed to allocate playback source: %w", err)
	}

	sess := &session{
		id:       uuid.New(),
		source:   source,
		fullText: fullText,
	}
	sess.schedule = captions.NewSchedule(fullText, buf.Duration(), c.clock, func(token string) {
		c.appendCaption(sess, token)
	})

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		source.Stop()
		return fmt.Errorf("a speaking session is already active")
	}
	c.current = sess
	c.mu.Unlock()

	if err := source.Start(func() { c.complete(sess) }); err != nil {
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
		source.Stop()
		return fmt.Errorf("failed to start playback: %w", err)
	}

	sess.schedule.Start()

	c.logger.Debug("Speaking session started",
		zap.String("sessionID", sess.id.String()),
		zap.Duration("audioDuration", buf.Duration()),
		zap.Int("tokens", sess.schedule.TokenCount()))

	return nil
}

// Stop tears down the current session: the pending caption tick is
// cancelled and the audio source halted and released. Safe to call when
// nothing is playing, and safe to call twice.
func (c *Controller) Stop() {
	c.mu.Lock()
	sess := c.current
	c.current = nil
	c.mu.Unlock()

	if sess == nil {
		return
	}

	sess.schedule.Cancel()
	sess.source.Stop()

	c.logger.Debug("Speaking session stopped", zap.String("sessionID", sess.id.String()))
}

// appendCaption handles one caption tick. Ticks from a session that is
// no longer current are dropped.
func (c *Controller) appendCaption(sess *session, token string) {
	c.mu.Lock()
	if c.current != sess {
		c.mu.Unlock()
		return
	}
	sess.displayed.WriteString(token)
	displayed := sess.displayed.String()
	hook := c.hooks.OnCaption
	c.mu.Unlock()

	if hook != nil {
		hook(displayed)
	}
}

// complete handles natural completion of the audio. Caption reveal runs
// on its own clock and may lag the audio; completion forces the full
// text so the final state is always consistent.
func (c *Controller) complete(sess *session) {
	c.mu.Lock()
	if c.current != sess {
		c.mu.Unlock()
		return
	}
	c.current = nil
	hook := c.hooks.OnFinished
	c.mu.Unlock()

	sess.schedule.Cancel()
	sess.source.Stop()

	c.logger.Debug("Speaking session completed", zap.String("sessionID", sess.id.String()))

	if hook != nil {
		hook(sess.fullText)
	}
}
