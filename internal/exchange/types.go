package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/antoniostano/voicebridge/internal/protocol"
)

var ErrNotFound = errors.New("no exchange recorded yet")

// Exchange is the outcome of one capture cycle. Only the most recent one is
// retained; each cycle overwrites the previous.
type Exchange struct {
	ID           string    `json:"id"`
	Transcript   string    `json:"user_text"`
	Reply        string    `json:"bot_text"`
	AudioURL     string    `json:"audio_url"`
	RecordingURL string    `json:"recording_url,omitempty"`
	Outcome      string    `json:"outcome"`
	CreatedAt    time.Time `json:"created_at"`
}

// Result converts e into the UI wire message.
func (e Exchange) Result() protocol.Result {
	return protocol.Result{
		UserText: e.Transcript,
		BotText:  e.Reply,
		AudioURL: e.AudioURL,
	}
}

// IsZero reports whether e has never been filled in.
func (e Exchange) IsZero() bool {
	return e.ID == "" && e.Transcript == "" && e.Reply == "" && e.AudioURL == ""
}

// Store keeps the single most recent exchange.
type Store interface {
	Save(ctx context.Context, e Exchange) error
	Last(ctx context.Context) (Exchange, error)
	Mode() string
	Close() error
}
