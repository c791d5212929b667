package voice

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/voicebridge/internal/artifact"
	"github.com/antoniostano/voicebridge/internal/audio"
	"github.com/antoniostano/voicebridge/internal/brain"
	"github.com/antoniostano/voicebridge/internal/exchange"
	"github.com/antoniostano/voicebridge/internal/observability"
	"github.com/antoniostano/voicebridge/internal/policy"
)

// ArtifactStore persists recordings and spoken replies.
type ArtifactStore interface {
	NewKey() artifact.Key
	SaveRecording(key artifact.Key, pcm []byte, sampleRate int) (artifact.Artifact, error)
	SaveResponse(key artifact.Key, data []byte, ext string) (artifact.Artifact, error)
}

// Capture is one drained recording session. The pipeline owns Buffer.
type Capture struct {
	SessionID string
	Buffer    *audio.Buffer
}

type PipelineConfig struct {
	SampleRate      int
	MinSeconds      float64
	AbortOnSTTError bool
	StageTimeout    time.Duration
	SystemPrompt    string
	LogTranscripts  bool
}

type Pipeline struct {
	cfg       PipelineConfig
	artifacts ArtifactStore
	stt       Transcriber
	brain     brain.Adapter
	tts       Synthesizer
	store     exchange.Store
	metrics   *observability.Metrics
	now       func() time.Time
}

type PipelineDeps struct {
	Artifacts   ArtifactStore
	Transcriber Transcriber
	Brain       brain.Adapter
	Synthesizer Synthesizer
	Store       exchange.Store
	Metrics     *observability.Metrics
}

func NewPipeline(cfg PipelineConfig, deps PipelineDeps) (*Pipeline, error) {
	if deps.Artifacts == nil || deps.Transcriber == nil || deps.Brain == nil || deps.Synthesizer == nil {
		return nil, errors.New("pipeline: artifacts, transcriber, brain and synthesizer are required")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.MinSeconds <= 0 {
		cfg.MinSeconds = 2
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = brain.DefaultSystemPrompt
	}
	store := deps.Store
	if store == nil {
		store = exchange.NewInMemoryStore()
	}
	return &Pipeline{
		cfg:       cfg,
		artifacts: deps.Artifacts,
		stt:       deps.Transcriber,
		brain:     deps.Brain,
		tts:       deps.Synthesizer,
		store:     store,
		metrics:   deps.Metrics,
		now:       time.Now,
	}, nil
}

// Run validates the capture, then transcribes, generates and synthesizes.
// It never fails: every stage failure is folded into the returned Exchange,
// which is also saved as the last exchange.
func (p *Pipeline) Run(ctx context.Context, c Capture) exchange.Exchange {
	start := p.now()
	ctx, span := observability.StartSpan(ctx, "pipeline.run")
	defer span.End()

	ex := exchange.Exchange{ID: uuid.NewString(), CreatedAt: start.UTC()}
	var kinds []string
	fail := func(r StageResult) {
		kinds = append(kinds, r.Kind.String())
		p.metrics.ObserveOutcome(r.Kind.String())
		log.Printf("pipeline: session=%s %s: %s", c.SessionID, r.Kind, r.Detail)
	}
	finish := func() exchange.Exchange {
		if len(kinds) == 0 {
			kinds = append(kinds, KindNone.String())
			p.metrics.ObserveOutcome(KindNone.String())
		}
		ex.Outcome = strings.Join(kinds, ",")
		p.metrics.ObserveStage("cycle_total", p.now().Sub(start))
		saveCtx, cancel := p.stageContext(context.WithoutCancel(ctx))
		if err := p.store.Save(saveCtx, ex); err != nil {
			log.Printf("pipeline: save last exchange: %v", err)
		}
		cancel()
		log.Printf("pipeline: session=%s outcome=%s transcript=%s reply=%s audio=%q",
			c.SessionID, ex.Outcome,
			policy.LogText(ex.Transcript, p.cfg.LogTranscripts),
			policy.LogText(ex.Reply, p.cfg.LogTranscripts),
			ex.AudioURL)
		return ex
	}

	if r := p.validate(c.Buffer); !r.OK() {
		fail(r)
		ex.Transcript = r.Text
		return finish()
	}

	key := p.artifacts.NewKey()
	rec, r := p.persist(ctx, key, c.Buffer)
	if !r.OK() {
		fail(r)
		ex.Transcript = r.Text
		return finish()
	}
	ex.RecordingURL = rec.URL

	r = p.transcribe(ctx, rec)
	ex.Transcript = r.Text
	if !r.OK() {
		fail(r)
		if r.Kind.Aborts(p.cfg.AbortOnSTTError) {
			return finish()
		}
	}

	r = p.generate(ctx, c.SessionID, ex.Transcript)
	ex.Reply = r.Text
	if !r.OK() {
		fail(r)
	}

	r = p.synthesize(ctx, key, ex.Reply)
	if r.OK() {
		ex.AudioURL = r.Text
	} else {
		fail(r)
	}
	return finish()
}

func (p *Pipeline) validate(buf *audio.Buffer) StageResult {
	if buf == nil || buf.Len() == 0 {
		return failed(KindNoAudioCaptured, "no frames captured")
	}
	if !buf.MeetsMinimumDuration(p.cfg.SampleRate, p.cfg.MinSeconds) {
		return failed(KindAudioTooShort, "captured "+formatSeconds(buf.DurationSeconds(p.cfg.SampleRate)))
	}
	return ok("")
}

func (p *Pipeline) persist(ctx context.Context, key artifact.Key, buf *audio.Buffer) (Recording, StageResult) {
	_, span := observability.StartSpan(ctx, "pipeline.persist")
	start := p.now()
	pcm := buf.DrainBytes()
	a, err := p.artifacts.SaveRecording(key, pcm, p.cfg.SampleRate)
	p.metrics.ObserveStage("persist", p.now().Sub(start))
	observability.EndSpan(span, err)
	if err != nil {
		return Recording{}, failed(KindPersistenceFailure, err.Error())
	}
	return Recording{Path: a.Path, URL: a.URL, PCM: pcm, SampleRate: p.cfg.SampleRate}, ok("")
}

func (p *Pipeline) transcribe(ctx context.Context, rec Recording) StageResult {
	ctx, span := observability.StartSpan(ctx, "pipeline.transcribe")
	ctx, cancel := p.stageContext(ctx)
	defer cancel()

	start := p.now()
	text, err := p.stt.Transcribe(ctx, rec)
	p.metrics.ObserveStage("transcribe", p.now().Sub(start))
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = ErrUnintelligible
	}
	observability.EndSpan(span, err)

	switch {
	case err == nil:
		return ok(text)
	case errors.Is(err, ErrUnintelligible):
		return failed(KindRecognitionUnintelligible, err.Error())
	default:
		return failed(KindRecognitionServiceError, err.Error())
	}
}

func (p *Pipeline) generate(ctx context.Context, sessionID, prompt string) StageResult {
	ctx, span := observability.StartSpan(ctx, "pipeline.generate")
	ctx, cancel := p.stageContext(ctx)
	defer cancel()

	start := p.now()
	resp, err := p.brain.Generate(ctx, brain.MessageRequest{
		SessionID:    sessionID,
		InputText:    prompt,
		SystemPrompt: p.cfg.SystemPrompt,
	})
	p.metrics.ObserveStage("generate", p.now().Sub(start))
	reply := strings.TrimSpace(resp.Text)
	if err == nil && reply == "" {
		err = brain.ErrEmptyReply
	}
	observability.EndSpan(span, err)
	if err != nil {
		return failed(KindGenerationFailure, err.Error())
	}
	return ok(reply)
}

// synthesize returns the reply's audio URL as Text on success.
func (p *Pipeline) synthesize(ctx context.Context, key artifact.Key, reply string) StageResult {
	ctx, span := observability.StartSpan(ctx, "pipeline.synthesize")
	ctx, cancel := p.stageContext(ctx)
	defer cancel()

	start := p.now()
	speech, err := p.tts.Synthesize(ctx, SpeakableText(reply))
	if err == nil {
		var a artifact.Artifact
		a, err = p.artifacts.SaveResponse(key, speech.Data, speech.Format)
		if err == nil {
			p.metrics.ObserveStage("synthesize", p.now().Sub(start))
			observability.EndSpan(span, nil)
			return ok(a.URL)
		}
	}
	p.metrics.ObserveStage("synthesize", p.now().Sub(start))
	observability.EndSpan(span, err)
	return failed(KindSynthesisFailure, err.Error())
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StageTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.StageTimeout)
	}
	return context.WithCancel(ctx)
}

// Last returns the most recent exchange, or a zero Exchange.
func (p *Pipeline) Last(ctx context.Context) exchange.Exchange {
	ex, err := p.store.Last(ctx)
	if err != nil {
		if !errors.Is(err, exchange.ErrNotFound) {
			log.Printf("pipeline: load last exchange: %v", err)
		}
		return exchange.Exchange{}
	}
	return ex
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 2, 64) + "s"
}
