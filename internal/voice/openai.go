package voice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/antoniostano/voicebridge/internal/audio"
)

// OpenAIConfig configures the OpenAI-compatible speech endpoints. BaseURL
// also targets self-hosted servers that speak the same API.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	STTModel   string
	TTSModel   string
	TTSVoice   string
	Language   string
	// MaxRetries < 0 keeps the SDK default.
	MaxRetries int
}

func (c OpenAIConfig) client() oai.Client {
	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if strings.TrimSpace(c.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(c.MaxRetries))
	}
	return oai.NewClient(opts...)
}

type OpenAITranscriber struct {
	client   oai.Client
	model    string
	language string
}

func NewOpenAITranscriber(cfg OpenAIConfig) (*OpenAITranscriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai stt: api key is required")
	}
	model := strings.TrimSpace(cfg.STTModel)
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}
	return &OpenAITranscriber{client: cfg.client(), model: model, language: strings.TrimSpace(cfg.Language)}, nil
}

// Transcribe uploads the persisted WAV. When the recording was not written to
// disk the PCM is wrapped in a WAV container in memory instead.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, rec Recording) (string, error) {
	var r io.Reader
	if rec.Path != "" {
		f, err := os.Open(rec.Path)
		if err != nil {
			return "", fmt.Errorf("open recording: %w", err)
		}
		defer f.Close()
		r = f
	} else {
		wav, err := audio.EncodeWAVPCM16LE(rec.PCM, rec.SampleRate)
		if err != nil {
			return "", err
		}
		r = bytes.NewReader(wav)
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(r, "recording.wav", "audio/wav"),
		Model: oai.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = oai.String(t.language)
	}
	res, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", ErrUnintelligible
	}
	return text, nil
}

type OpenAISynthesizer struct {
	client oai.Client
	model  string
	voice  string
}

func NewOpenAISynthesizer(cfg OpenAIConfig) (*OpenAISynthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai tts: api key is required")
	}
	model := strings.TrimSpace(cfg.TTSModel)
	if model == "" {
		model = string(oai.SpeechModelTTS1)
	}
	voice := strings.TrimSpace(cfg.TTSVoice)
	if voice == "" {
		voice = string(oai.AudioSpeechNewParamsVoiceAlloy)
	}
	return &OpenAISynthesizer{client: cfg.client(), model: model, voice: voice}, nil
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (SpeechAudio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SpeechAudio{}, fmt.Errorf("openai speech: empty text")
	}
	res, err := s.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(s.model),
		Voice:          oai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return SpeechAudio{}, fmt.Errorf("openai speech: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 32<<20))
	if err != nil {
		return SpeechAudio{}, fmt.Errorf("read speech: %w", err)
	}
	if len(data) == 0 {
		return SpeechAudio{}, fmt.Errorf("openai speech: empty audio")
	}
	return SpeechAudio{Data: data, Format: "mp3"}, nil
}
