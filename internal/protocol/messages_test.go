package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		raw  string
		want Command
	}{
		{"START", CommandStart},
		{"stop", CommandStop},
		{"  Start\n", CommandStart},
		{`{"command":"STOP"}`, CommandStop},
		{`{"type":"start"}`, CommandStart},
	}
	for _, tc := range cases {
		got, err := ParseCommand([]byte(tc.raw))
		if err != nil {
			t.Fatalf("ParseCommand(%q) error = %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCommand(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestParseCommandRejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "PAUSE", `{"command":"RESET"}`} {
		_, err := ParseCommand([]byte(raw))
		if !errors.Is(err, ErrUnknownCommand) {
			t.Fatalf("ParseCommand(%q) error = %v, want ErrUnknownCommand", raw, err)
		}
	}
	if _, err := ParseCommand([]byte(`{not json`)); err == nil {
		t.Fatalf("ParseCommand(invalid json) expected error")
	}
}

func TestEncodeResultKeepsEmptyFields(t *testing.T) {
	raw, err := EncodeResult(Result{UserText: "(no audio received)"})
	if err != nil {
		t.Fatalf("EncodeResult() error = %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"user_text", "bot_text", "audio_url"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing key %q in %s", key, raw)
		}
	}
	if payload["audio_url"] != "" {
		t.Fatalf("audio_url = %v, want empty string", payload["audio_url"])
	}
}
