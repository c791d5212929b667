package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/voicebridge/internal/audio"
	"github.com/antoniostano/voicebridge/internal/reliability"
)

// WhisperServerTranscriber posts recordings to a whisper.cpp server's
// /inference endpoint.
type WhisperServerTranscriber struct {
	baseURL  string
	language string
	client   *http.Client
	policy   reliability.Policy
}

func NewWhisperServerTranscriber(baseURL, language string) (*WhisperServerTranscriber, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("whisper-server url is required")
	}
	return &WhisperServerTranscriber{
		baseURL:  baseURL,
		language: strings.TrimSpace(language),
		client:   &http.Client{Timeout: 60 * time.Second},
		policy:   reliability.Policy{MaxAttempts: 2, Base: 200 * time.Millisecond, Cap: time.Second},
	}, nil
}

func (w *WhisperServerTranscriber) Transcribe(ctx context.Context, rec Recording) (string, error) {
	wav, err := audio.EncodeWAVPCM16LE(rec.PCM, rec.SampleRate)
	if err != nil {
		return "", err
	}

	var text string
	err = reliability.Do(ctx, w.policy, func(ctx context.Context) error {
		var err error
		text, err = w.infer(ctx, wav)
		return err
	})
	if err != nil {
		return "", err
	}
	if text == "" || isBlankMarker(text) {
		return "", ErrUnintelligible
	}
	return text, nil
}

func (w *WhisperServerTranscriber) infer(ctx context.Context, wav []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", reliability.Permanent(err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", reliability.Permanent(err)
	}
	_ = mw.WriteField("temperature", "0.0")
	_ = mw.WriteField("response_format", "json")
	if w.language != "" {
		_ = mw.WriteField("language", w.language)
	}
	if err := mw.Close(); err != nil {
		return "", reliability.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/inference", &body)
	if err != nil {
		return "", reliability.Permanent(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper-server request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("whisper-server read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("whisper-server HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		if !reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return "", reliability.Permanent(err)
		}
		return "", err
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return "", reliability.Permanent(fmt.Errorf("whisper-server response: %w", err))
	}
	return strings.TrimSpace(out.Text), nil
}

// isBlankMarker matches whisper's placeholders for silent input.
func isBlankMarker(text string) bool {
	switch strings.ToUpper(strings.Trim(text, " []().")) {
	case "BLANK_AUDIO", "SILENCE", "NO SPEECH":
		return true
	}
	return false
}
