package voice

import (
	"context"
	"errors"
)

// ErrUnintelligible is returned by a Transcriber when the audio was received
// but no speech could be recognized in it.
var ErrUnintelligible = errors.New("speech could not be understood")

// Recording is a persisted capture handed to speech recognition.
type Recording struct {
	Path       string
	URL        string
	PCM        []byte
	SampleRate int
}

type Transcriber interface {
	Transcribe(ctx context.Context, rec Recording) (string, error)
}

// SpeechAudio is an encoded spoken reply. Format is the file extension
// (mp3, wav) used when the reply is persisted.
type SpeechAudio struct {
	Data   []byte
	Format string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (SpeechAudio, error)
}
