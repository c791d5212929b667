package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/voicebridge/internal/audio"
)

func speechRecording() Recording {
	return Recording{PCM: audio.Tone(16000, 300, 2*time.Second, 0.5), SampleRate: 16000}
}

func TestWhisperServerTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q, want en", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
		} else {
			if _, _, err := audio.DecodeWAVPCM16LE(f); err != nil {
				t.Errorf("uploaded file is not WAV: %v", err)
			}
			f.Close()
		}
		_, _ = w.Write([]byte(`{"text":"  turn on the lights \n"}`))
	}))
	defer srv.Close()

	w, err := NewWhisperServerTranscriber(srv.URL+"/", "en")
	if err != nil {
		t.Fatalf("NewWhisperServerTranscriber() error = %v", err)
	}
	text, err := w.Transcribe(context.Background(), speechRecording())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "turn on the lights" {
		t.Fatalf("text = %q", text)
	}
}

func TestWhisperServerBlankIsUnintelligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":" [BLANK_AUDIO]"}`))
	}))
	defer srv.Close()

	w, _ := NewWhisperServerTranscriber(srv.URL, "")
	if _, err := w.Transcribe(context.Background(), speechRecording()); !errors.Is(err, ErrUnintelligible) {
		t.Fatalf("Transcribe() error = %v, want ErrUnintelligible", err)
	}
}

func TestWhisperServerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"text":"hello"}`))
	}))
	defer srv.Close()

	w, _ := NewWhisperServerTranscriber(srv.URL, "")
	w.policy.Base = time.Millisecond
	text, err := w.Transcribe(context.Background(), speechRecording())
	if err != nil || text != "hello" {
		t.Fatalf("Transcribe() = %q, %v", text, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestWhisperServerClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer srv.Close()

	w, _ := NewWhisperServerTranscriber(srv.URL, "")
	_, err := w.Transcribe(context.Background(), speechRecording())
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("Transcribe() error = %v, want HTTP 400", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func newFakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/audio/transcriptions"):
			if err := r.ParseMultipartForm(8 << 20); err != nil {
				t.Errorf("ParseMultipartForm() error = %v", err)
			}
			if got := r.FormValue("model"); got != "whisper-1" {
				t.Errorf("model = %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"text":"hello from openai"}`))
		case strings.HasSuffix(r.URL.Path, "/audio/speech"):
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["input"] != "Hi there." || body["voice"] != "nova" {
				t.Errorf("speech body = %v", body)
			}
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3-mp3-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOpenAITranscriberAndSynthesizer(t *testing.T) {
	srv := newFakeOpenAI(t)
	defer srv.Close()

	cfg := OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", TTSVoice: "nova", MaxRetries: 0}
	stt, err := NewOpenAITranscriber(cfg)
	if err != nil {
		t.Fatalf("NewOpenAITranscriber() error = %v", err)
	}
	text, err := stt.Transcribe(context.Background(), speechRecording())
	if err != nil || text != "hello from openai" {
		t.Fatalf("Transcribe() = %q, %v", text, err)
	}

	tts, err := NewOpenAISynthesizer(cfg)
	if err != nil {
		t.Fatalf("NewOpenAISynthesizer() error = %v", err)
	}
	out, err := tts.Synthesize(context.Background(), "Hi there.")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(out.Data) != "ID3-mp3-bytes" || out.Format != "mp3" {
		t.Fatalf("Synthesize() = %q/%s", out.Data, out.Format)
	}
}

func TestElevenLabsSynthesizerCollectsChunks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "xi-test" {
			t.Errorf("xi-api-key = %q", r.Header.Get("xi-api-key"))
		}
		if !strings.HasSuffix(r.URL.Path, "/v1/text-to-speech/voice-1/stream-input") {
			t.Errorf("path = %q", r.URL.Path)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var got []string
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg struct {
				Text string `json:"text"`
			}
			_ = json.Unmarshal(data, &msg)
			if msg.Text == "" {
				break
			}
			got = append(got, msg.Text)
		}
		if len(got) != 2 || strings.TrimSpace(got[1]) != "Hello." {
			t.Errorf("text messages = %q", got)
		}
		for _, chunk := range []string{"abc", "def"} {
			_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte(chunk))})
		}
		_ = conn.WriteJSON(map[string]any{"isFinal": true})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	s, err := NewElevenLabsSynthesizer(ElevenLabsConfig{
		APIKey:    "xi-test",
		VoiceID:   "voice-1",
		WSBaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	if err != nil {
		t.Fatalf("NewElevenLabsSynthesizer() error = %v", err)
	}
	out, err := s.Synthesize(context.Background(), "Hello.")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(out.Data) != "abcdef" || out.Format != "mp3" {
		t.Fatalf("Synthesize() = %q/%s", out.Data, out.Format)
	}
}

func TestElevenLabsSynthesizerError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
		_ = conn.WriteJSON(map[string]any{"error": "quota_exceeded"})
	}))
	defer srv.Close()

	s, _ := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "k", VoiceID: "v", WSBaseURL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	if _, err := s.Synthesize(context.Background(), "Hello."); err == nil || !strings.Contains(err.Error(), "quota_exceeded") {
		t.Fatalf("Synthesize() error = %v, want quota_exceeded", err)
	}
}

func TestFormatExtension(t *testing.T) {
	cases := map[string]string{
		"mp3_44100_128": "mp3",
		"pcm_16000":     "raw",
		"opus_48000_64": "opus",
		"":              "mp3",
	}
	for in, want := range cases {
		if got := formatExtension(in); got != want {
			t.Fatalf("formatExtension(%q) = %q, want %q", in, got, want)
		}
	}
}
