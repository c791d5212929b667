package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML layout of APP_CONFIG_FILE. Unset keys keep the
// defaults; unknown keys are rejected.
type fileConfig struct {
	Server struct {
		BindAddr         string `yaml:"bind_addr"`
		ShutdownTimeout  string `yaml:"shutdown_timeout"`
		MetricsNamespace string `yaml:"metrics_namespace"`
		AllowAnyOrigin   *bool  `yaml:"allow_any_origin"`
	} `yaml:"server"`
	Audio struct {
		SampleRate    int     `yaml:"sample_rate"`
		MinSeconds    float64 `yaml:"min_seconds"`
		MaxFrameBytes int     `yaml:"max_frame_bytes"`
		RecordingsDir string  `yaml:"recordings_dir"`
		ResponsesDir  string  `yaml:"responses_dir"`
	} `yaml:"audio"`
	Pipeline struct {
		AbortOnSTTError *bool  `yaml:"abort_on_stt_error"`
		StageTimeout    string `yaml:"stage_timeout"`
		LogTranscripts  *bool  `yaml:"log_transcripts"`
	} `yaml:"pipeline"`
	STT struct {
		Provider         string `yaml:"provider"`
		WhisperServerURL string `yaml:"whisper_server_url"`
		WhisperLanguage  string `yaml:"whisper_language"`
	} `yaml:"stt"`
	TTS struct {
		Provider          string `yaml:"provider"`
		ElevenLabsVoiceID string `yaml:"elevenlabs_voice_id"`
		ElevenLabsModelID string `yaml:"elevenlabs_model_id"`
	} `yaml:"tts"`
	OpenAI struct {
		BaseURL  string `yaml:"base_url"`
		STTModel string `yaml:"stt_model"`
		TTSModel string `yaml:"tts_model"`
		TTSVoice string `yaml:"tts_voice"`
	} `yaml:"openai"`
	Brain struct {
		Provider     string `yaml:"provider"`
		Model        string `yaml:"model"`
		BaseURL      string `yaml:"base_url"`
		HTTPURL      string `yaml:"http_url"`
		SystemPrompt string `yaml:"system_prompt"`
	} `yaml:"brain"`
	Storage struct {
		DatabaseURL string `yaml:"database_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"storage"`
}

// applyFile overlays the YAML file at path onto cfg. Secrets (API keys) are
// only read from the environment.
func applyFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("APP_CONFIG_FILE: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("APP_CONFIG_FILE %s: %w", path, err)
	}

	setString(&cfg.BindAddr, fc.Server.BindAddr)
	setString(&cfg.MetricsNamespace, fc.Server.MetricsNamespace)
	setBool(&cfg.AllowAnyOrigin, fc.Server.AllowAnyOrigin)
	if err := setDuration(&cfg.ShutdownTimeout, "server.shutdown_timeout", fc.Server.ShutdownTimeout); err != nil {
		return err
	}

	setInt(&cfg.SampleRate, fc.Audio.SampleRate)
	setInt(&cfg.MaxFrameBytes, fc.Audio.MaxFrameBytes)
	if fc.Audio.MinSeconds > 0 {
		cfg.MinSeconds = fc.Audio.MinSeconds
	}
	setString(&cfg.RecordingsDir, fc.Audio.RecordingsDir)
	setString(&cfg.ResponsesDir, fc.Audio.ResponsesDir)

	setBool(&cfg.AbortOnSTTError, fc.Pipeline.AbortOnSTTError)
	setBool(&cfg.LogTranscripts, fc.Pipeline.LogTranscripts)
	if err := setDuration(&cfg.StageTimeout, "pipeline.stage_timeout", fc.Pipeline.StageTimeout); err != nil {
		return err
	}

	setString(&cfg.STTProvider, fc.STT.Provider)
	setString(&cfg.WhisperServerURL, fc.STT.WhisperServerURL)
	setString(&cfg.WhisperLanguage, fc.STT.WhisperLanguage)
	setString(&cfg.TTSProvider, fc.TTS.Provider)
	setString(&cfg.ElevenLabsVoiceID, fc.TTS.ElevenLabsVoiceID)
	setString(&cfg.ElevenLabsModelID, fc.TTS.ElevenLabsModelID)
	setString(&cfg.OpenAIBaseURL, fc.OpenAI.BaseURL)
	setString(&cfg.OpenAISTTModel, fc.OpenAI.STTModel)
	setString(&cfg.OpenAITTSModel, fc.OpenAI.TTSModel)
	setString(&cfg.OpenAITTSVoice, fc.OpenAI.TTSVoice)
	setString(&cfg.BrainProvider, fc.Brain.Provider)
	setString(&cfg.BrainModel, fc.Brain.Model)
	setString(&cfg.BrainBaseURL, fc.Brain.BaseURL)
	setString(&cfg.BrainHTTPURL, fc.Brain.HTTPURL)
	setString(&cfg.BrainSystemPrompt, fc.Brain.SystemPrompt)
	setString(&cfg.DatabaseURL, fc.Storage.DatabaseURL)
	setString(&cfg.RedisURL, fc.Storage.RedisURL)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("APP_CONFIG_FILE %s: %w", key, err)
	}
	*dst = d
	return nil
}
