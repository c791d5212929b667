package voice

import (
	"fmt"
	"log"
	"strings"
)

// ProviderConfig selects and configures the speech providers.
type ProviderConfig struct {
	STTProvider string
	TTSProvider string

	OpenAI OpenAIConfig

	WhisperServerURL string
	WhisperLanguage  string

	ElevenLabs ElevenLabsConfig
}

// NewTranscriber builds the recognizer named by cfg.STTProvider: openai,
// whisper-server, mock or auto. Auto picks openai when a key is set, then a
// whisper server, then the mock. With both configured, openai fails over to
// the whisper server.
func NewTranscriber(cfg ProviderConfig) (Transcriber, string, error) {
	switch mode := normalizeMode(cfg.STTProvider); mode {
	case "openai":
		t, err := NewOpenAITranscriber(cfg.OpenAI)
		return t, mode, err
	case "whisper-server":
		t, err := NewWhisperServerTranscriber(cfg.WhisperServerURL, cfg.WhisperLanguage)
		return t, mode, err
	case "mock":
		return NewMockTranscriber(), mode, nil
	case "auto":
		var (
			primary, fallback Transcriber
			names             []string
		)
		if strings.TrimSpace(cfg.OpenAI.APIKey) != "" {
			t, err := NewOpenAITranscriber(cfg.OpenAI)
			if err != nil {
				return nil, "", err
			}
			primary, names = t, append(names, "openai")
		}
		if strings.TrimSpace(cfg.WhisperServerURL) != "" {
			t, err := NewWhisperServerTranscriber(cfg.WhisperServerURL, cfg.WhisperLanguage)
			if err != nil {
				return nil, "", err
			}
			fallback, names = t, append(names, "whisper-server")
		}
		switch {
		case primary != nil && fallback != nil:
			return NewFailoverTranscriber(primary, fallback), strings.Join(names, "+"), nil
		case primary != nil:
			return primary, names[0], nil
		case fallback != nil:
			return fallback, names[0], nil
		}
		log.Printf("voice: no speech recognizer configured, using mock transcriber")
		return NewMockTranscriber(), "mock", nil
	default:
		return nil, "", fmt.Errorf("unsupported stt provider %q", cfg.STTProvider)
	}
}

// NewSynthesizer builds the speech synthesizer named by cfg.TTSProvider:
// elevenlabs, openai, mock or auto. Auto prefers elevenlabs and fails over
// to openai when both are configured.
func NewSynthesizer(cfg ProviderConfig) (Synthesizer, string, error) {
	switch mode := normalizeMode(cfg.TTSProvider); mode {
	case "elevenlabs":
		s, err := NewElevenLabsSynthesizer(cfg.ElevenLabs)
		return s, mode, err
	case "openai":
		s, err := NewOpenAISynthesizer(cfg.OpenAI)
		return s, mode, err
	case "mock":
		return NewMockSynthesizer(), mode, nil
	case "auto":
		var (
			primary, fallback Synthesizer
			names             []string
		)
		if strings.TrimSpace(cfg.ElevenLabs.APIKey) != "" && strings.TrimSpace(cfg.ElevenLabs.VoiceID) != "" {
			s, err := NewElevenLabsSynthesizer(cfg.ElevenLabs)
			if err != nil {
				return nil, "", err
			}
			primary, names = s, append(names, "elevenlabs")
		}
		if strings.TrimSpace(cfg.OpenAI.APIKey) != "" {
			s, err := NewOpenAISynthesizer(cfg.OpenAI)
			if err != nil {
				return nil, "", err
			}
			fallback, names = s, append(names, "openai")
		}
		switch {
		case primary != nil && fallback != nil:
			return NewFailoverSynthesizer(primary, fallback), strings.Join(names, "+"), nil
		case primary != nil:
			return primary, names[0], nil
		case fallback != nil:
			return fallback, names[0], nil
		}
		log.Printf("voice: no speech synthesizer configured, using mock synthesizer")
		return NewMockSynthesizer(), "mock", nil
	default:
		return nil, "", fmt.Errorf("unsupported tts provider %q", cfg.TTSProvider)
	}
}

func normalizeMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return "auto"
	}
	return mode
}
