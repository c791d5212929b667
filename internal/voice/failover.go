package voice

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// failoverState is shared by a provider pair. Once the fallback has served a
// request it stays preferred until it fails, then the primary is retried.
type failoverState struct {
	fallbackActive atomic.Bool
}

// callWithFailover runs primary or fallback in the preferred order.
// Errors for which keep returns true are returned as-is without failing over.
func callWithFailover[T any](
	ctx context.Context,
	state *failoverState,
	kind string,
	primary, fallback func(context.Context) (T, error),
	keep func(error) bool,
) (T, error) {
	first, second := primary, fallback
	firstName, secondName := "primary", "fallback"
	if state.fallbackActive.Load() {
		first, second = fallback, primary
		firstName, secondName = "fallback", "primary"
	}

	out, err1 := first(ctx)
	if err1 == nil || keep(err1) || ctx.Err() != nil {
		return out, err1
	}
	out, err2 := second(ctx)
	if err2 == nil || keep(err2) {
		state.fallbackActive.Store(secondName == "fallback")
		return out, err2
	}
	var zero T
	return zero, fmt.Errorf("%s %s failed: %v; %s %s failed: %w", kind, firstName, err1, kind, secondName, err2)
}

// FailoverTranscriber prefers Primary and switches to Fallback when the
// primary service fails. An unintelligible recording is a result, not a
// service failure, and never triggers a switch.
type FailoverTranscriber struct {
	Primary  Transcriber
	Fallback Transcriber
	state    failoverState
}

func NewFailoverTranscriber(primary, fallback Transcriber) *FailoverTranscriber {
	return &FailoverTranscriber{Primary: primary, Fallback: fallback}
}

func (f *FailoverTranscriber) Transcribe(ctx context.Context, rec Recording) (string, error) {
	return callWithFailover(ctx, &f.state, "stt",
		func(ctx context.Context) (string, error) { return f.Primary.Transcribe(ctx, rec) },
		func(ctx context.Context) (string, error) { return f.Fallback.Transcribe(ctx, rec) },
		func(err error) bool { return errors.Is(err, ErrUnintelligible) },
	)
}

// FailoverSynthesizer prefers Primary and switches to Fallback when the
// primary fails.
type FailoverSynthesizer struct {
	Primary  Synthesizer
	Fallback Synthesizer
	state    failoverState
}

func NewFailoverSynthesizer(primary, fallback Synthesizer) *FailoverSynthesizer {
	return &FailoverSynthesizer{Primary: primary, Fallback: fallback}
}

func (f *FailoverSynthesizer) Synthesize(ctx context.Context, text string) (SpeechAudio, error) {
	return callWithFailover(ctx, &f.state, "tts",
		func(ctx context.Context) (SpeechAudio, error) { return f.Primary.Synthesize(ctx, text) },
		func(ctx context.Context) (SpeechAudio, error) { return f.Fallback.Synthesize(ctx, text) },
		func(error) bool { return false },
	)
}
