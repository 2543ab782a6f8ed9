package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/counselkit/counsel/adapters"
	"github.com/counselkit/counsel/adapters/llm"
	adaptermongo "github.com/counselkit/counsel/adapters/mongo"
	"github.com/counselkit/counsel/adapters/tts"
	"github.com/counselkit/counsel/domain/repositories"
	"github.com/counselkit/counsel/internal/api"
	"github.com/counselkit/counsel/internal/websocket"
	"github.com/counselkit/counsel/usecase"
)

func main() {
	// Load .env file if present, real environment wins
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	generator := buildGenerator(logger)
	synthesizer := buildSynthesizer(logger)
	exchanges, closeStorage := buildExchangeRepository(logger)
	defer closeStorage()

	// Initialize WebSocket hub
	hub := websocket.NewHub(generator, synthesizer, exchanges, clock.New(), logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, hub, exchanges, logger)

	// Background pruning of old exchanges
	retention := usecase.NewRetentionService(exchanges, retentionPeriod(logger), logger)
	retention.Start()
	defer retention.Stop()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildGenerator prefers the real Gemini client, falling back to the
// mock when no API key is configured.
func buildGenerator(logger *zap.Logger) repositories.AdviceGenerator {
	config := llm.NewGeminiConfigFromEnv()
	if err := llm.ValidateGeminiConfig(config); err != nil {
		logger.Warn("Gemini not configured, using mock generator", zap.Error(err))
		return llm.NewMockGenerator()
	}

	generator, err := llm.NewGeminiGenerator(config, logger)
	if err != nil {
		logger.Warn("Failed to initialize Gemini, using mock generator", zap.Error(err))
		return llm.NewMockGenerator()
	}
	return generator
}

// buildSynthesizer prefers ElevenLabs, falling back to the sine-tone
// mock when no API key is configured.
func buildSynthesizer(logger *zap.Logger) repositories.SpeechSynthesizer {
	config := tts.NewElevenLabsConfigFromEnv()
	if err := tts.ValidateElevenLabsConfig(config); err != nil {
		logger.Warn("ElevenLabs not configured, using mock synthesizer", zap.Error(err))
		return tts.NewMockSynthesizer(logger)
	}

	synthesizer, err := tts.NewElevenLabsSynthesizer(config, logger)
	if err != nil {
		logger.Warn("Failed to initialize ElevenLabs, using mock synthesizer", zap.Error(err))
		return tts.NewMockSynthesizer(logger)
	}
	return synthesizer
}

// buildExchangeRepository connects to MongoDB when a URI is configured
// and keeps history in memory otherwise.
func buildExchangeRepository(logger *zap.Logger) (repositories.ExchangeRepository, func()) {
	config := adaptermongo.NewMongoConfigFromEnv()
	if err := adaptermongo.ValidateMongoConfig(config); err != nil {
		logger.Info("MongoDB not configured, keeping exchange history in memory")
		return adapters.NewMemoryExchangeRepository(), func() {}
	}

	client, err := adaptermongo.NewClient(config, logger)
	if err != nil {
		logger.Warn("Failed to connect to MongoDB, keeping exchange history in memory", zap.Error(err))
		return adapters.NewMemoryExchangeRepository(), func() {}
	}

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(ctx)
	}
	return adaptermongo.NewExchangeRepository(client.Database), closeFn
}

func retentionPeriod(logger *zap.Logger) time.Duration {
	v := os.Getenv("EXCHANGE_RETENTION_DAYS")
	if v == "" {
		return usecase.DefaultRetentionPeriod
	}
	days, err := strconv.Atoi(v)
	if err != nil || days <= 0 {
		logger.Warn("Invalid EXCHANGE_RETENTION_DAYS, using default", zap.String("value", v))
		return usecase.DefaultRetentionPeriod
	}
	return time.Duration(days) * 24 * time.Hour
}
