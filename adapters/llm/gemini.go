package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/counselkit/counsel/domain/repositories"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.8
	defaultTopP        = 0.95
	defaultMaxTokens   = 512
	// Thinking budget applied when a submission requests thinking mode.
	defaultThinkingBudget = 1024
)

const systemPrompt = "You are a seasoned, plainspoken advisor. " +
	"Answer with short, practical advice meant to be read aloud: one or two sentences, no lists, no markdown."

// GeminiConfig holds configuration for the Gemini advice generator.
// APIKey is required; the rest default sensibly.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	MaxOutputTokens int
	ThinkingBudget  int
}

// ValidateGeminiConfig validates the GeminiConfig.
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	if config.TopP != 0 && (config.TopP < 0 || config.TopP > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.ThinkingBudget < 0 {
		return fmt.Errorf("thinkingBudget must be positive, got %d", config.ThinkingBudget)
	}

	return nil
}

// NewGeminiConfigFromEnv creates a GeminiConfig from environment
// variables.
func NewGeminiConfigFromEnv() GeminiConfig {
	config := GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	}

	if budgetStr := os.Getenv("GEMINI_THINKING_BUDGET"); budgetStr != "" {
		if budget, err := strconv.Atoi(budgetStr); err == nil && budget > 0 {
			config.ThinkingBudget = budget
		}
	}

	return config
}

// GeminiGenerator implements the AdviceGenerator interface using
// Google's Gemini API with streamed responses.
type GeminiGenerator struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	maxOutputTokens int
	thinkingBudget  int
}

// Ensure GeminiGenerator implements the AdviceGenerator interface
var _ repositories.AdviceGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a new Gemini advice generator.
func NewGeminiGenerator(config GeminiConfig, logger *zap.Logger) (*GeminiGenerator, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	topP := config.TopP
	if topP == 0 {
		topP = defaultTopP
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
	}

	thinkingBudget := config.ThinkingBudget
	if thinkingBudget == 0 {
		thinkingBudget = defaultThinkingBudget
	}

	return &GeminiGenerator{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		topP:            topP,
		maxOutputTokens: maxOutputTokens,
		thinkingBudget:  thinkingBudget,
	}, nil
}

// Generate streams the advice response for a prompt. thinkingMode maps
// to the model's thinking budget and is otherwise opaque here.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, thinkingMode bool) (<-chan repositories.AdviceChunk, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		TopP:              genai.Ptr(g.topP),
		MaxOutputTokens:   int32(g.maxOutputTokens),
	}
	if thinkingMode {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(g.thinkingBudget)),
		}
	}

	g.logger.Info("Streaming advice from Gemini",
		zap.String("model", g.model),
		zap.Bool("thinkingMode", thinkingMode))

	chunks := make(chan repositories.AdviceChunk, 8)

	go func() {
		defer close(chunks)

		for response, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
			if err != nil {
				g.logger.Error("Gemini stream failed", zap.Error(err))
				chunks <- repositories.AdviceChunk{Err: err}
				return
			}

			text := responseText(response)
			if text == "" {
				continue
			}

			select {
			case chunks <- repositories.AdviceChunk{Text: text}:
			case <-ctx.Done():
				select {
				case chunks <- repositories.AdviceChunk{Err: ctx.Err()}:
				default:
				}
				return
			}
		}
	}()

	return chunks, nil
}

// responseText extracts the text parts of a streamed response chunk.
func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 {
		return ""
	}

	candidate := response.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var text string
	for _, part := range candidate.Content.Parts {
		if part.Thought {
			continue
		}
		if part.Text != "" {
			text += part.Text
		}
	}

	return text
}
