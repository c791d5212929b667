package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/antoniostano/voicebridge/internal/artifact"
	"github.com/antoniostano/voicebridge/internal/brain"
	"github.com/antoniostano/voicebridge/internal/config"
	"github.com/antoniostano/voicebridge/internal/exchange"
	"github.com/antoniostano/voicebridge/internal/httpapi"
	"github.com/antoniostano/voicebridge/internal/observability"
	"github.com/antoniostano/voicebridge/internal/session"
	"github.com/antoniostano/voicebridge/internal/voice"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	shutdownTracing, err := observability.InitTracing("voicebridge", version, nil)
	if err != nil {
		log.Fatalf("tracing init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := exchange.NewStore(ctx, cfg.DatabaseURL, cfg.RedisURL)
	if err != nil {
		log.Fatalf("exchange store init failed: %v", err)
	}
	defer store.Close()
	log.Printf("exchange store: %s", store.Mode())

	artifacts, err := artifact.New(cfg.RecordingsDir, cfg.ResponsesDir)
	if err != nil {
		log.Fatalf("artifact store init failed: %v", err)
	}

	adapter, brainName, err := brain.NewAdapter(brain.Config{
		Mode:    cfg.BrainProvider,
		Model:   cfg.BrainModel,
		APIKey:  cfg.BrainAPIKey,
		BaseURL: cfg.BrainBaseURL,
		HTTPURL: cfg.BrainHTTPURL,
	})
	if err != nil {
		log.Fatalf("brain init failed: %v", err)
	}
	log.Printf("brain provider: %s", brainName)

	providers := voice.ProviderConfig{
		STTProvider: cfg.STTProvider,
		TTSProvider: cfg.TTSProvider,
		OpenAI: voice.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			STTModel:   cfg.OpenAISTTModel,
			TTSModel:   cfg.OpenAITTSModel,
			TTSVoice:   cfg.OpenAITTSVoice,
			Language:   cfg.WhisperLanguage,
			MaxRetries: -1,
		},
		WhisperServerURL: cfg.WhisperServerURL,
		WhisperLanguage:  cfg.WhisperLanguage,
		ElevenLabs: voice.ElevenLabsConfig{
			APIKey:    cfg.ElevenLabsAPIKey,
			WSBaseURL: cfg.ElevenLabsWSBaseURL,
			VoiceID:   cfg.ElevenLabsVoiceID,
			ModelID:   cfg.ElevenLabsModelID,
		},
	}
	stt, sttName, err := voice.NewTranscriber(providers)
	if err != nil {
		log.Fatalf("stt provider init failed: %v", err)
	}
	tts, ttsName, err := voice.NewSynthesizer(providers)
	if err != nil {
		log.Fatalf("tts provider init failed: %v", err)
	}
	log.Printf("voice providers: stt=%s tts=%s", sttName, ttsName)

	pipeline, err := voice.NewPipeline(voice.PipelineConfig{
		SampleRate:      cfg.SampleRate,
		MinSeconds:      cfg.MinSeconds,
		AbortOnSTTError: cfg.AbortOnSTTError,
		StageTimeout:    cfg.StageTimeout,
		SystemPrompt:    cfg.BrainSystemPrompt,
		LogTranscripts:  cfg.LogTranscripts,
	}, voice.PipelineDeps{
		Artifacts:   artifacts,
		Transcriber: stt,
		Brain:       adapter,
		Synthesizer: tts,
		Store:       store,
		Metrics:     metrics,
	})
	if err != nil {
		log.Fatalf("pipeline init failed: %v", err)
	}

	controller := session.NewController(session.ControllerConfig{
		SampleRate: cfg.SampleRate,
		Last:       pipeline.Last(ctx),
	}, pipeline, metrics)

	api := httpapi.New(ctx, cfg, controller, store, metrics)
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
			_ = httpServer.Close()
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("tracing shutdown failed: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server error: %v", err)
		stop()
		store.Close()
		os.Exit(1)
	}
	log.Printf("shutdown complete")
}
