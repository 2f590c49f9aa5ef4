package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dreysen/voicelink/adapters/llm"
	"github.com/dreysen/voicelink/adapters/stt"
	"github.com/dreysen/voicelink/adapters/tts"
	"github.com/dreysen/voicelink/domain/repositories"
	"github.com/dreysen/voicelink/internal/api"
	"github.com/dreysen/voicelink/internal/auth"
	"github.com/dreysen/voicelink/internal/config"
	"github.com/dreysen/voicelink/internal/metrics"
	"github.com/dreysen/voicelink/internal/websocket"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	useMocks := flag.Bool("mock-providers", false, "use mock STT/LLM/TTS providers")
	flag.Parse()

	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	speechToText, languageModel, textToSpeech, err := buildProviders(cfg, *useMocks, logger)
	if err != nil {
		logger.Fatal("Failed to initialize providers", zap.Error(err))
	}

	tokens := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.AccessTokenExpireHours)*time.Hour,
		time.Duration(cfg.Auth.RefreshTokenExpireDays)*24*time.Hour,
		cfg.Auth.Allowlist,
	)

	registry := prometheus.NewRegistry()
	stats := metrics.New(registry)

	hub := websocket.NewHub(tokens, speechToText, languageModel, textToSpeech, cfg, logger, stats)
	go hub.Run()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
	}))

	api.InitRoutes(e, hub, tokens,
		time.Duration(cfg.Auth.AccessTokenExpireHours)*time.Hour,
		registry, logger)

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.Float64("windowSeconds", cfg.Audio.WindowSeconds),
		zap.Bool("mockProviders", *useMocks))

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

func newLogger(level string) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if parsed, err := zap.ParseAtomicLevel(level); err == nil {
		zapCfg.Level = parsed
	}
	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func buildProviders(cfg *config.Config, useMocks bool, logger *zap.Logger) (
	repositories.SpeechToText,
	repositories.LargeLanguageModel,
	repositories.TextToSpeech,
	error,
) {
	if useMocks {
		return stt.NewMockSpeechToText(logger),
			llm.NewMockLLM(logger),
			tts.NewMockTTS(logger),
			nil
	}

	languageModel, err := llm.NewGeminiLLM(cfg.LLM.APIKey, cfg.LLM.Model, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	textToSpeech, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
		APIKey:  cfg.TTS.APIKey,
		VoiceID: cfg.TTS.Voice,
	}, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return stt.NewGoogleSpeechToText(), languageModel, textToSpeech, nil
}
