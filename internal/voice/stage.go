package voice

import "fmt"

// ErrorKind tags the outcome of a pipeline stage.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNoAudioCaptured
	KindAudioTooShort
	KindPersistenceFailure
	KindRecognitionUnintelligible
	KindRecognitionServiceError
	KindGenerationFailure
	KindSynthesisFailure
)

var kindNames = map[ErrorKind]string{
	KindNone:                      "ok",
	KindNoAudioCaptured:           "no_audio_captured",
	KindAudioTooShort:             "audio_too_short",
	KindPersistenceFailure:        "persistence_failure",
	KindRecognitionUnintelligible: "recognition_unintelligible",
	KindRecognitionServiceError:   "recognition_service_error",
	KindGenerationFailure:         "generation_failure",
	KindSynthesisFailure:          "synthesis_failure",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Aborts reports whether a failure of this kind ends the cycle. Recognition
// failures only abort when abortOnSTT is set.
func (k ErrorKind) Aborts(abortOnSTT bool) bool {
	switch k {
	case KindNoAudioCaptured, KindAudioTooShort, KindPersistenceFailure:
		return true
	case KindRecognitionUnintelligible, KindRecognitionServiceError:
		return abortOnSTT
	default:
		return false
	}
}

// StageResult is what a stage produced: either a value or a tagged failure
// with its user-facing diagnostic text.
type StageResult struct {
	Kind   ErrorKind
	Text   string
	Detail string
}

func (r StageResult) OK() bool { return r.Kind == KindNone }

func ok(text string) StageResult { return StageResult{Text: text} }

func failed(kind ErrorKind, detail string) StageResult {
	return StageResult{Kind: kind, Text: diagnostic(kind, detail), Detail: detail}
}

// diagnostic renders the text that takes the place of the transcript or reply
// when a stage fails.
func diagnostic(kind ErrorKind, detail string) string {
	switch kind {
	case KindNoAudioCaptured:
		return "(no audio received)"
	case KindAudioTooShort:
		return "(STT Error: audio too short, please speak longer)"
	case KindPersistenceFailure:
		return "(Save error: " + detail + ")"
	case KindRecognitionUnintelligible:
		return "(STT Error: Could not understand audio)"
	case KindRecognitionServiceError:
		return "(STT Error: " + detail + ")"
	case KindGenerationFailure:
		return "(LLM Error: " + detail + ")"
	default:
		return ""
	}
}
