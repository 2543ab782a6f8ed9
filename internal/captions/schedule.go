package captions

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Schedule drives the word-by-word caption reveal for one playback
// session. Each tick emits the token at the cursor and schedules the
// next tick only after its own emit has returned, so emits never run
// concurrently and tokens are always revealed in order. The per-token delay is the total audio
// duration divided evenly across the tokens: a one-character word and a
// twelve-character word get equal display time. That mirrors the
// speech service's pacing contract and is intentional.
type Schedule struct {
	tokens []string
	delay  time.Duration
	clock  clock.Clock
	emit   func(token string)

	mu        sync.Mutex
	timer     *clock.Timer
	cursor    int
	cancelled bool
}

// NewSchedule computes the reveal schedule for text spoken over
// audioDuration. The emit callback receives each token as it is
// revealed.
func NewSchedule(text string, audioDuration time.Duration, clk clock.Clock, emit func(token string)) *Schedule {
	tokens := Split(text)

	n := len(tokens)
	if n < 1 {
		n = 1
	}

	return &Schedule{
		tokens: tokens,
		delay:  audioDuration / time.Duration(n),
		clock:  clk,
		emit:   emit,
	}
}

// Delay returns the fixed per-token delay.
func (s *Schedule) Delay() time.Duration {
	return s.delay
}

// TokenCount returns the number of tokens the schedule will reveal.
func (s *Schedule) TokenCount() int {
	return len(s.tokens)
}

// Start schedules the first tick. It does nothing for empty text.
func (s *Schedule) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled || len(s.tokens) == 0 {
		return
	}
	s.timer = s.clock.AfterFunc(s.delay, s.tick)
}

// Cancel prevents any pending tick from firing. After Cancel the cursor
// is never advanced again and no further tokens are emitted. Safe to
// call repeatedly or when no tick is pending.
func (s *Schedule) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelled = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Schedule) tick() {
	s.mu.Lock()
	if s.cancelled || s.cursor >= len(s.tokens) {
		s.mu.Unlock()
		return
	}

	token := s.tokens[s.cursor]
	s.cursor++
	done := s.cursor >= len(s.tokens)
	s.mu.Unlock()

	// Emit before re-arming. A slow consumer must finish with this
	// token before the next tick can fire, otherwise two emits could
	// run concurrently and reveal tokens out of order.
	s.emit(token)

	s.mu.Lock()
	if !s.cancelled && !done {
		s.timer = s.clock.AfterFunc(s.delay, s.tick)
	} else {
		s.timer = nil
	}
	s.mu.Unlock()
}
