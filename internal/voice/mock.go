package voice

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/antoniostano/voicebridge/internal/audio"
)

// silenceRMS is the level under which the mock treats a capture as silence.
const silenceRMS = 200

// MockTranscriber stands in for a real recognizer. Silent captures are
// unintelligible, anything louder is transcribed as Text.
type MockTranscriber struct {
	Text string
}

func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{Text: "simulated voice input"}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, rec Recording) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if rms(rec.PCM) < silenceRMS {
		return "", ErrUnintelligible
	}
	return m.Text, nil
}

func rms(pcm []byte) float64 {
	samples := audio.DecodePCM16LE(pcm)
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// MockSynthesizer renders a short tone whose length follows the text, as WAV.
type MockSynthesizer struct {
	SampleRate int
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{SampleRate: audio.DefaultSampleRate}
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) (SpeechAudio, error) {
	if err := ctx.Err(); err != nil {
		return SpeechAudio{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return SpeechAudio{}, errors.New("mock tts: empty text")
	}
	d := time.Duration(utf8.RuneCountInString(text)) * 40 * time.Millisecond
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	wav, err := audio.EncodeWAVPCM16LE(audio.Tone(m.SampleRate, 440, d, 0.3), m.SampleRate)
	if err != nil {
		return SpeechAudio{}, err
	}
	return SpeechAudio{Data: wav, Format: "wav"}, nil
}
