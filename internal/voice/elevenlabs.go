package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type ElevenLabsConfig struct {
	APIKey       string
	WSBaseURL    string
	VoiceID      string
	ModelID      string
	OutputFormat string
	Stability    float64
	Similarity   float64
}

// ElevenLabsSynthesizer renders a reply through the stream-input websocket and
// collects the audio chunks into one clip.
type ElevenLabsSynthesizer struct {
	cfg    ElevenLabsConfig
	dialer *websocket.Dialer
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) (*ElevenLabsSynthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("elevenlabs: api key is required")
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		return nil, fmt.Errorf("elevenlabs: voice id is required")
	}
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	cfg.Stability = clampUnit(cfg.Stability, 0.42)
	cfg.Similarity = clampUnit(cfg.Similarity, 0.85)
	return &ElevenLabsSynthesizer{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

type elevenTextMessage struct {
	Text          string               `json:"text"`
	VoiceSettings *elevenVoiceSettings `json:"voice_settings,omitempty"`
	TryTrigger    bool                 `json:"try_trigger_generation,omitempty"`
}

type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenAudioMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) (SpeechAudio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SpeechAudio{}, fmt.Errorf("elevenlabs: empty text")
	}
	u, err := url.Parse(strings.TrimRight(s.cfg.WSBaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(s.cfg.VoiceID) + "/stream-input")
	if err != nil {
		return SpeechAudio{}, err
	}
	q := u.Query()
	q.Set("model_id", s.cfg.ModelID)
	q.Set("output_format", s.cfg.OutputFormat)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", s.cfg.APIKey)

	conn, _, err := s.dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return SpeechAudio{}, fmt.Errorf("dial tts websocket: %w", err)
	}
	defer conn.Close()

	// Unblock the reader when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	msgs := []elevenTextMessage{
		{Text: " ", VoiceSettings: &elevenVoiceSettings{Stability: s.cfg.Stability, SimilarityBoost: s.cfg.Similarity}},
		{Text: text + " ", TryTrigger: true},
		{Text: ""},
	}
	for _, m := range msgs {
		if err := conn.WriteJSON(m); err != nil {
			return SpeechAudio{}, fmt.Errorf("send tts text: %w", err)
		}
	}

	var clip []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return SpeechAudio{}, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(clip) > 0 {
				break
			}
			return SpeechAudio{}, fmt.Errorf("read tts stream: %w", err)
		}
		var msg elevenAudioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return SpeechAudio{}, fmt.Errorf("elevenlabs: %s", msg.Error)
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return SpeechAudio{}, fmt.Errorf("decode tts audio: %w", err)
			}
			clip = append(clip, chunk...)
		}
		if msg.IsFinal {
			break
		}
	}
	if len(clip) == 0 {
		return SpeechAudio{}, errors.New("elevenlabs: no audio received")
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return SpeechAudio{Data: clip, Format: formatExtension(s.cfg.OutputFormat)}, nil
}

// formatExtension maps an output_format such as mp3_44100_128 to a file extension.
func formatExtension(outputFormat string) string {
	prefix, _, _ := strings.Cut(outputFormat, "_")
	switch prefix {
	case "pcm", "ulaw":
		return "raw"
	case "":
		return "mp3"
	default:
		return prefix
	}
}

func clampUnit(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	if v > 1 {
		return 1
	}
	return v
}
