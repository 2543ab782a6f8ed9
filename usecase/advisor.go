package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/counselkit/counsel/domain/entities"
	"github.com/counselkit/counsel/domain/repositories"
	"github.com/counselkit/counsel/internal/pcm"
	"github.com/counselkit/counsel/internal/playback"
)

// ErrBlankPrompt is returned when a submission contains no text. No
// collaborator call is made for a blank prompt.
var ErrBlankPrompt = errors.New("prompt must not be blank")

// fallbackErrorMessage is surfaced when a collaborator fails without a
// usable message of its own.
const fallbackErrorMessage = "something went wrong, try again"

// State is the externally observable surface of the advisor: a derived
// projection of the speaking session plus request-in-flight state.
type State struct {
	Loading       bool   `json:"loading"`
	Speaking      bool   `json:"speaking"`
	Error         string `json:"error,omitempty"`
	DisplayedText string `json:"displayed_text"`
	ThinkingMode  bool   `json:"thinking_mode"`
}

// Advisor orchestrates one prompt/response interaction: stream the
// advice text silently, request synthesized speech for the complete
// text, decode it, and hand the buffer to the playback controller for
// synchronized caption reveal. All failures are caught here, and Stop
// is the single recovery path: no failure leaves a dangling session,
// pending caption tick, or stuck loading flag.
type Advisor struct {
	generator   repositories.AdviceGenerator
	synthesizer repositories.SpeechSynthesizer
	exchanges   repositories.ExchangeRepository
	controller  *playback.Controller
	logger      *zap.Logger
	clientID    string

	// submitMu serializes Submit calls. Two submissions must never
	// interleave: the later caller waits, then stops whatever the
	// earlier one started.
	submitMu sync.Mutex

	mu     sync.Mutex
	state  State
	notify func(State)
}

// NewAdvisor creates an advisor for one client. exchanges may be nil
// when history persistence is not configured.
func NewAdvisor(
	generator repositories.AdviceGenerator,
	synthesizer repositories.SpeechSynthesizer,
	exchanges repositories.ExchangeRepository,
	controller *playback.Controller,
	clientID string,
	logger *zap.Logger,
) *Advisor {
	a := &Advisor{
		generator:   generator,
		synthesizer: synthesizer,
		exchanges:   exchanges,
		controller:  controller,
		logger:      logger,
		clientID:    clientID,
	}

	controller.SetHooks(playback.Hooks{
		OnCaption:  a.onCaption,
		OnFinished: a.onFinished,
	})

	return a
}

// OnStateChange registers the observer notified after every state
// change. The callback must not call back into the advisor.
func (a *Advisor) OnStateChange(fn func(State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notify = fn
}

// State returns a snapshot of the observable state.
func (a *Advisor) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Submit runs one full submission. Concurrent calls are serialized in
// arrival order, and any active session is stopped synchronously
// before remote work begins, so a stale session's callbacks can never
// mutate state once a new submission has started.
func (a *Advisor) Submit(ctx context.Context, prompt string, thinkingMode bool) error {
	a.submitMu.Lock()
	defer a.submitMu.Unlock()

	if strings.TrimSpace(prompt) == "" {
		a.update(func(s *State) {
			s.Error = ErrBlankPrompt.Error()
			s.ThinkingMode = thinkingMode
		})
		return ErrBlankPrompt
	}

	a.Stop()
	a.update(func(s *State) {
		s.Loading = true
		s.Error = ""
		s.DisplayedText = ""
		s.ThinkingMode = thinkingMode
	})

	a.logger.Info("Processing submission",
		zap.String("clientID", a.clientID),
		zap.Bool("thinkingMode", thinkingMode))

	advice, err := a.streamAdvice(ctx, prompt, thinkingMode)
	if err != nil {
		return a.fail("advice generation failed", err)
	}

	payload, err := a.synthesizer.Synthesize(ctx, advice)
	if err != nil {
		return a.fail("speech synthesis failed", err)
	}

	if payload == "" {
		// No audio is a recognized outcome: show the full text at once.
		a.logger.Info("No audio payload, showing text immediately",
			zap.String("clientID", a.clientID))
		a.update(func(s *State) {
			s.Loading = false
			s.DisplayedText = advice
		})
		a.record(entities.NewExchange(a.clientID, prompt, advice, thinkingMode))
		return nil
	}

	buf, err := pcm.DecodeBase64(payload, pcm.DefaultSampleRate, pcm.DefaultChannels)
	if err != nil {
		return a.fail("audio decode failed", err)
	}

	// Speaking is flipped before playback starts so a completion hook
	// firing immediately after Start can never be overwritten.
	a.update(func(s *State) {
		s.Speaking = true
	})

	if err := a.controller.Speak(buf, advice); err != nil {
		return a.fail("playback failed", err)
	}

	exchange := entities.NewExchange(a.clientID, prompt, advice, thinkingMode)
	exchange.MarkSpoken(buf.Duration())
	a.record(exchange)

	return nil
}

// Stop idempotently tears down the current session and clears the
// loading and speaking flags. Safe to call at any time.
func (a *Advisor) Stop() {
	a.controller.Stop()
	a.update(func(s *State) {
		s.Loading = false
		s.Speaking = false
	})
}

// streamAdvice accumulates the streamed response silently; partial
// fragments are never displayed before speech is ready.
func (a *Advisor) streamAdvice(ctx context.Context, prompt string, thinkingMode bool) (string, error) {
	chunks, err := a.generator.Generate(ctx, prompt, thinkingMode)
	if err != nil {
		return "", err
	}

	var advice strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		advice.WriteString(chunk.Text)
	}

	return advice.String(), nil
}

// fail surfaces the error message and runs the full teardown.
func (a *Advisor) fail(stage string, err error) error {
	a.logger.Error("Submission failed", zap.String("stage", stage), zap.Error(err))

	message := err.Error()
	if message == "" {
		message = fallbackErrorMessage
	}

	a.controller.Stop()
	a.update(func(s *State) {
		s.Loading = false
		s.Speaking = false
		s.Error = message
	})

	return err
}

// onCaption receives the displayed text after each caption tick.
func (a *Advisor) onCaption(displayed string) {
	a.update(func(s *State) {
		s.DisplayedText = displayed
	})
}

// onFinished receives natural completion: the displayed text is forced
// to the complete advice, overriding any caption lag.
func (a *Advisor) onFinished(fullText string) {
	a.update(func(s *State) {
		s.Speaking = false
		s.Loading = false
		s.DisplayedText = fullText
	})
}

// update applies a state mutation and notifies the observer.
func (a *Advisor) update(mutate func(*State)) {
	a.mu.Lock()
	mutate(&a.state)
	snapshot := a.state
	notify := a.notify
	a.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

// record persists a completed exchange. Persistence failures are
// logged, never surfaced to the observable state.
func (a *Advisor) record(exchange *entities.Exchange) {
	if a.exchanges == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.exchanges.Create(ctx, exchange); err != nil {
			a.logger.Error("Failed to record exchange",
				zap.String("clientID", a.clientID),
				zap.Error(err))
		}
	}()
}
