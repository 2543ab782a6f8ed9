package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/counselkit/counsel/adapters"
	"github.com/counselkit/counsel/adapters/audio"
	"github.com/counselkit/counsel/adapters/llm"
	"github.com/counselkit/counsel/adapters/tts"
	"github.com/counselkit/counsel/domain/repositories"
	"github.com/counselkit/counsel/internal/playback"
	"github.com/counselkit/counsel/usecase"
)

const submitTimeout = 60 * time.Second

// Console client: prompts are read from stdin, advice plays on the
// local sound device while captions render in the terminal.
func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment(zap.IncreaseLevel(zap.WarnLevel))
	defer logger.Sync()

	engine := audio.NewMalgoEngine(logger)
	defer engine.Close()

	controller := playback.NewController(engine, clock.New(), logger)
	exchanges := adapters.NewMemoryExchangeRepository()
	clientID := uuid.NewString()

	advisor := usecase.NewAdvisor(
		buildGenerator(logger),
		buildSynthesizer(logger),
		exchanges,
		controller,
		clientID,
		logger,
	)

	renderer := &consoleRenderer{}
	advisor.OnStateChange(renderer.render)

	fmt.Println("counsel: type a prompt and press enter.")
	fmt.Println("commands: /think toggles deeper reasoning, /stop interrupts, /history lists past exchanges, /quit exits")

	thinkingMode := false
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "/quit":
			advisor.Stop()
			return
		case line == "/stop":
			advisor.Stop()
		case line == "/think":
			thinkingMode = !thinkingMode
			fmt.Printf("thinking mode: %v\n", thinkingMode)
		case line == "/history":
			printHistory(exchanges, clientID)
		default:
			ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
			if err := advisor.Submit(ctx, line, thinkingMode); err != nil {
				fmt.Printf("error: %v\n", err)
			}
			cancel()
		}
		fmt.Print("> ")
	}
}

// consoleRenderer redraws the caption line in place as tokens arrive.
type consoleRenderer struct {
	lastLen int
}

func (r *consoleRenderer) render(state usecase.State) {
	if state.Error != "" {
		fmt.Printf("\nerror: %s\n", state.Error)
		r.lastLen = 0
		return
	}

	line := state.DisplayedText
	if state.Loading && line == "" {
		line = "..."
	}

	// Pad with spaces so a shorter redraw fully covers the old line.
	padding := ""
	if r.lastLen > len(line) {
		padding = strings.Repeat(" ", r.lastLen-len(line))
	}
	fmt.Printf("\r%s%s", line, padding)
	r.lastLen = len(line)

	if !state.Loading && !state.Speaking && line != "" {
		fmt.Println()
		r.lastLen = 0
	}
}

func printHistory(exchanges repositories.ExchangeRepository, clientID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recent, err := exchanges.GetRecent(ctx, clientID, 10)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if len(recent) == 0 {
		fmt.Println("no exchanges yet")
		return
	}
	for i := len(recent) - 1; i >= 0; i-- {
		e := recent[i]
		fmt.Printf("[%s] you: %s\n", e.CreatedAt.Format("15:04:05"), e.Prompt)
		fmt.Printf("           counsel: %s\n", e.Advice)
	}
}

func buildGenerator(logger *zap.Logger) repositories.AdviceGenerator {
	config := llm.NewGeminiConfigFromEnv()
	if err := llm.ValidateGeminiConfig(config); err != nil {
		fmt.Println("GEMINI_API_KEY not set, using canned responses")
		return llm.NewMockGenerator()
	}

	generator, err := llm.NewGeminiGenerator(config, logger)
	if err != nil {
		fmt.Printf("gemini unavailable (%v), using canned responses\n", err)
		return llm.NewMockGenerator()
	}
	return generator
}

func buildSynthesizer(logger *zap.Logger) repositories.SpeechSynthesizer {
	config := tts.NewElevenLabsConfigFromEnv()
	if err := tts.ValidateElevenLabsConfig(config); err != nil {
		fmt.Println("ELEVENLABS_API_KEY not set, using tone synthesizer")
		return tts.NewMockSynthesizer(logger)
	}

	synthesizer, err := tts.NewElevenLabsSynthesizer(config, logger)
	if err != nil {
		fmt.Printf("elevenlabs unavailable (%v), using tone synthesizer\n", err)
		return tts.NewMockSynthesizer(logger)
	}
	return synthesizer
}
