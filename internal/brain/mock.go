package brain

import (
	"context"
	"strings"
)

// MockAdapter answers without a model: it repeats the transcript back, and
// asks the user to try again when the transcript is a recognition diagnostic
// such as "(STT Error: ...)".
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (MockAdapter) Generate(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	if err := ctx.Err(); err != nil {
		return MessageResponse{}, err
	}
	heard := strings.TrimSpace(req.InputText)
	switch {
	case heard == "":
		return MessageResponse{Text: "I did not hear anything. Please try again."}, nil
	case strings.HasPrefix(heard, "(") && strings.HasSuffix(heard, ")"):
		return MessageResponse{Text: "Sorry, I did not catch that. Could you say it again?"}, nil
	default:
		return MessageResponse{Text: "I heard you: " + heard}, nil
	}
}
