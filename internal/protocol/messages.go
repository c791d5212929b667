package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Command is a capture control command exchanged with the UI and the device.
type Command string

const (
	CommandStart Command = "START"
	CommandStop  Command = "STOP"
)

var ErrUnknownCommand = errors.New("unknown command")

// Result is the message pushed to the UI after each capture cycle.
// All fields are always present; AudioURL is empty when no audio is available.
type Result struct {
	UserText string `json:"user_text"`
	BotText  string `json:"bot_text"`
	AudioURL string `json:"audio_url"`
}

type commandEnvelope struct {
	Command string `json:"command"`
	Type    string `json:"type"`
}

// ParseCommand accepts a bare text command ("START", "stop") or a JSON
// envelope such as {"command":"START"}.
func ParseCommand(raw []byte) (Command, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("%w: empty message", ErrUnknownCommand)
	}
	if strings.HasPrefix(text, "{") {
		var env commandEnvelope
		if err := json.Unmarshal([]byte(text), &env); err != nil {
			return "", fmt.Errorf("invalid command envelope: %w", err)
		}
		text = env.Command
		if text == "" {
			text = env.Type
		}
	}
	switch Command(strings.ToUpper(strings.TrimSpace(text))) {
	case CommandStart:
		return CommandStart, nil
	case CommandStop:
		return CommandStop, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, text)
	}
}

// EncodeResult serializes r for the UI socket.
func EncodeResult(r Result) ([]byte, error) {
	return json.Marshal(r)
}
