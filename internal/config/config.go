package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice bridge.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	SampleRate    int
	MinSeconds    float64
	MaxFrameBytes int

	RecordingsDir string
	ResponsesDir  string

	AbortOnSTTError bool
	StageTimeout    time.Duration
	LogTranscripts  bool

	STTProvider string
	TTSProvider string

	BrainProvider     string
	BrainModel        string
	BrainAPIKey       string
	BrainBaseURL      string
	BrainHTTPURL      string
	BrainSystemPrompt string

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAISTTModel string
	OpenAITTSModel string
	OpenAITTSVoice string

	WhisperServerURL string
	WhisperLanguage  string

	ElevenLabsAPIKey    string
	ElevenLabsWSBaseURL string
	ElevenLabsVoiceID   string
	ElevenLabsModelID   string

	DatabaseURL string
	RedisURL    string
}

func defaults() Config {
	return Config{
		BindAddr:            ":8000",
		ShutdownTimeout:     15 * time.Second,
		MetricsNamespace:    "voicebridge",
		SampleRate:          16000,
		MinSeconds:          2,
		MaxFrameBytes:       64 << 10,
		RecordingsDir:       "recordings",
		ResponsesDir:        "responses",
		StageTimeout:        60 * time.Second,
		STTProvider:         "auto",
		TTSProvider:         "auto",
		BrainProvider:       "auto",
		OpenAISTTModel:      "whisper-1",
		OpenAITTSModel:      "tts-1",
		OpenAITTSVoice:      "alloy",
		ElevenLabsWSBaseURL: "wss://api.elevenlabs.io",
		ElevenLabsModelID:   "eleven_multilingual_v2",
	}
}

// Load applies defaults, then the optional APP_CONFIG_FILE, then environment
// variables. Environment always wins.
func Load() (Config, error) {
	cfg := defaults()
	if path := stringsTrimSpace("APP_CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.BindAddr = envOrDefault("APP_BIND_ADDR", cfg.BindAddr)
	cfg.MetricsNamespace = envOrDefault("APP_METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.RecordingsDir = envOrDefault("RECORDINGS_DIR", cfg.RecordingsDir)
	cfg.ResponsesDir = envOrDefault("RESPONSES_DIR", cfg.ResponsesDir)
	cfg.STTProvider = envOrDefault("STT_PROVIDER", cfg.STTProvider)
	cfg.TTSProvider = envOrDefault("TTS_PROVIDER", cfg.TTSProvider)
	cfg.BrainProvider = envOrDefault("BRAIN_PROVIDER", cfg.BrainProvider)
	cfg.BrainModel = envOrDefault("BRAIN_MODEL", cfg.BrainModel)
	cfg.BrainAPIKey = firstNonEmpty(stringsTrimSpace("BRAIN_API_KEY"), stringsTrimSpace("GEMINI_API_KEY"), cfg.BrainAPIKey)
	cfg.BrainBaseURL = envOrDefault("BRAIN_BASE_URL", cfg.BrainBaseURL)
	cfg.BrainHTTPURL = envOrDefault("BRAIN_HTTP_URL", cfg.BrainHTTPURL)
	cfg.BrainSystemPrompt = envOrDefault("BRAIN_SYSTEM_PROMPT", cfg.BrainSystemPrompt)
	cfg.OpenAIAPIKey = envOrDefault("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = envOrDefault("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAISTTModel = envOrDefault("OPENAI_STT_MODEL", cfg.OpenAISTTModel)
	cfg.OpenAITTSModel = envOrDefault("OPENAI_TTS_MODEL", cfg.OpenAITTSModel)
	cfg.OpenAITTSVoice = envOrDefault("OPENAI_TTS_VOICE", cfg.OpenAITTSVoice)
	cfg.WhisperServerURL = envOrDefault("WHISPER_SERVER_URL", cfg.WhisperServerURL)
	cfg.WhisperLanguage = envOrDefault("WHISPER_LANGUAGE", cfg.WhisperLanguage)
	cfg.ElevenLabsAPIKey = envOrDefault("ELEVENLABS_API_KEY", cfg.ElevenLabsAPIKey)
	cfg.ElevenLabsWSBaseURL = envOrDefault("ELEVENLABS_BASE_URL", cfg.ElevenLabsWSBaseURL)
	cfg.ElevenLabsVoiceID = envOrDefault("ELEVENLABS_TTS_VOICE_ID", cfg.ElevenLabsVoiceID)
	cfg.ElevenLabsModelID = envOrDefault("ELEVENLABS_TTS_MODEL_ID", cfg.ElevenLabsModelID)
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.StageTimeout, err = durationFromEnv("PIPELINE_STAGE_TIMEOUT", cfg.StageTimeout); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}
	if cfg.AbortOnSTTError, err = boolFromEnv("PIPELINE_ABORT_ON_STT_ERROR", cfg.AbortOnSTTError); err != nil {
		return Config{}, err
	}
	if cfg.LogTranscripts, err = boolFromEnv("LOG_TRANSCRIPTS", cfg.LogTranscripts); err != nil {
		return Config{}, err
	}
	if cfg.SampleRate, err = intFromEnv("AUDIO_SAMPLE_RATE", cfg.SampleRate); err != nil {
		return Config{}, err
	}
	if cfg.MaxFrameBytes, err = intFromEnv("AUDIO_MAX_FRAME_BYTES", cfg.MaxFrameBytes); err != nil {
		return Config{}, err
	}
	if cfg.MinSeconds, err = floatFromEnv("AUDIO_MIN_SECONDS", cfg.MinSeconds); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be between 8000 and 48000")
	}
	if c.MinSeconds <= 0 {
		return fmt.Errorf("AUDIO_MIN_SECONDS must be positive")
	}
	if c.MaxFrameBytes < 64 {
		return fmt.Errorf("AUDIO_MAX_FRAME_BYTES must be at least 64")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.StageTimeout < 0 {
		return fmt.Errorf("PIPELINE_STAGE_TIMEOUT must be >= 0")
	}
	if strings.TrimSpace(c.RecordingsDir) == "" || strings.TrimSpace(c.ResponsesDir) == "" {
		return fmt.Errorf("RECORDINGS_DIR and RESPONSES_DIR must not be empty")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
