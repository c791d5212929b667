package session

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"pgregory.net/rapid"

	"github.com/antoniostano/voicebridge/internal/artifact"
	"github.com/antoniostano/voicebridge/internal/audio"
	"github.com/antoniostano/voicebridge/internal/brain"
	"github.com/antoniostano/voicebridge/internal/exchange"
	"github.com/antoniostano/voicebridge/internal/observability"
	"github.com/antoniostano/voicebridge/internal/protocol"
	"github.com/antoniostano/voicebridge/internal/voice"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (s *recordingSink) SendText(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, string(payload))
	return nil
}

func (s *recordingSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

func (s *recordingSink) results(t *testing.T) []protocol.Result {
	t.Helper()
	var out []protocol.Result
	for _, m := range s.messages() {
		var r protocol.Result
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			t.Fatalf("ui message %q is not a result: %v", m, err)
		}
		out = append(out, r)
	}
	return out
}

// captureRunner records what each STOP handed to the pipeline.
type captureRunner struct {
	mu       sync.Mutex
	captures [][]byte
	nilCount int
	block    chan struct{}
	started  chan struct{}
}

func (r *captureRunner) Run(_ context.Context, c voice.Capture) exchange.Exchange {
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Buffer == nil {
		r.nilCount++
		return exchange.Exchange{ID: "x", Transcript: "(no audio received)"}
	}
	r.captures = append(r.captures, c.Buffer.DrainBytes())
	return exchange.Exchange{ID: "x", Transcript: "heard", Reply: "ok", AudioURL: "/responses/reply.mp3"}
}

func newTestController(runner Runner) (*Controller, *recordingSink, *recordingSink) {
	c := NewController(ControllerConfig{SampleRate: 16000}, runner, observability.NewMetricsWith(prometheus.NewRegistry(), "test"))
	dev, ui := &recordingSink{}, &recordingSink{}
	c.AttachDevice(dev)
	c.AttachUI(ui)
	return c, dev, ui
}

func frame(b byte, n int) []byte {
	f := make([]byte, n)
	for i := range f {
		f[i] = b
	}
	return f
}

func TestControllerCycle(t *testing.T) {
	runner := &captureRunner{}
	c, dev, ui := newTestController(runner)
	ctx := context.Background()

	c.OnFrame(frame(9, 4)) // idle: discarded
	if err := c.HandleCommand(ctx, protocol.CommandStart); err != nil {
		t.Fatalf("START error = %v", err)
	}
	if c.State() != StateRecording || !c.Device().Accepting() {
		t.Fatalf("state = %s accepting = %v", c.State(), c.Device().Accepting())
	}
	c.OnFrame(frame(1, 4))
	c.OnFrame(frame(2, 4))
	if snap := c.Snapshot(); snap.BufferedBytes != 8 || snap.FramesAccepted != 2 || snap.SessionID == "" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if err := c.HandleCommand(ctx, protocol.CommandStop); err != nil {
		t.Fatalf("STOP error = %v", err)
	}
	c.OnFrame(frame(3, 4)) // after STOP: discarded

	if got := dev.messages(); len(got) != 2 || got[0] != "START" || got[1] != "STOP" {
		t.Fatalf("device messages = %q", got)
	}
	if len(runner.captures) != 1 || string(runner.captures[0]) != string(append(frame(1, 4), frame(2, 4)...)) {
		t.Fatalf("captures = %v", runner.captures)
	}
	results := ui.results(t)
	if len(results) != 1 || results[0].UserText != "heard" || results[0].AudioURL != "/responses/reply.mp3" {
		t.Fatalf("ui results = %+v", results)
	}
	if c.State() != StateIdle || c.Device().Accepting() {
		t.Fatalf("after STOP state = %s accepting = %v", c.State(), c.Device().Accepting())
	}
	if c.Current().Transcript != "heard" {
		t.Fatalf("Current() = %+v", c.Current())
	}
	if snap := c.Snapshot(); snap.BufferedBytes != 0 {
		t.Fatalf("late frame buffered: %+v", snap)
	}
}

func TestControllerRestartClearsBuffer(t *testing.T) {
	runner := &captureRunner{}
	c, _, _ := newTestController(runner)
	ctx := context.Background()

	_ = c.HandleCommand(ctx, protocol.CommandStart)
	c.OnFrame(frame(1, 6))
	_ = c.HandleCommand(ctx, protocol.CommandStart)
	c.OnFrame(frame(2, 4))
	_ = c.HandleCommand(ctx, protocol.CommandStop)

	if len(runner.captures) != 1 || string(runner.captures[0]) != string(frame(2, 4)) {
		t.Fatalf("captures = %v, want only post-restart frames", runner.captures)
	}
}

func TestControllerStopWhileIdle(t *testing.T) {
	dir := t.TempDir()
	arts, err := artifact.New(filepath.Join(dir, "rec"), filepath.Join(dir, "resp"))
	if err != nil {
		t.Fatalf("artifact.New() error = %v", err)
	}
	p, err := voice.NewPipeline(voice.PipelineConfig{}, voice.PipelineDeps{
		Artifacts:   arts,
		Transcriber: voice.NewMockTranscriber(),
		Brain:       brain.NewMockAdapter(),
		Synthesizer: voice.NewMockSynthesizer(),
	})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	c, dev, ui := newTestController(p)

	if err := c.HandleCommand(context.Background(), protocol.CommandStop); err != nil {
		t.Fatalf("STOP error = %v", err)
	}
	results := ui.results(t)
	if len(results) != 1 {
		t.Fatalf("ui results = %+v", results)
	}
	want := protocol.Result{UserText: "(no audio received)"}
	if results[0] != want {
		t.Fatalf("result = %+v, want %+v", results[0], want)
	}
	if got := dev.messages(); len(got) != 0 {
		t.Fatalf("idle STOP forwarded to device: %q", got)
	}
}

func TestControllerStartWaitsForPipeline(t *testing.T) {
	runner := &captureRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	c, dev, _ := newTestController(runner)
	ctx := context.Background()

	_ = c.HandleCommand(ctx, protocol.CommandStart)
	c.OnFrame(frame(1, 4))

	stopDone := make(chan struct{})
	go func() {
		_ = c.HandleCommand(ctx, protocol.CommandStop)
		close(stopDone)
	}()
	<-runner.started

	startDone := make(chan struct{})
	go func() {
		_ = c.HandleCommand(ctx, protocol.CommandStart)
		close(startDone)
	}()

	// Frames during the pipeline are never blocked, only discarded.
	c.OnFrame(frame(7, 4))
	select {
	case <-startDone:
		t.Fatal("START completed while the pipeline was running")
	case <-time.After(50 * time.Millisecond):
	}
	if c.State() != StateIdle {
		t.Fatalf("state during pipeline = %s", c.State())
	}

	close(runner.block)
	<-stopDone
	<-startDone

	if got := dev.messages(); len(got) != 3 || got[2] != "START" {
		t.Fatalf("device messages = %q", got)
	}
	if c.State() != StateRecording {
		t.Fatalf("state = %s, want recording", c.State())
	}
	if snap := c.Snapshot(); snap.BufferedBytes != 0 {
		t.Fatalf("frame sent during pipeline leaked into next session: %+v", snap)
	}
}

func TestControllerDeviceDetachKeepsSession(t *testing.T) {
	runner := &captureRunner{}
	c, dev, _ := newTestController(runner)
	ctx := context.Background()

	_ = c.HandleCommand(ctx, protocol.CommandStart)
	c.OnFrame(frame(1, 4))
	c.DetachDevice(dev)
	if c.Device().Connected() {
		t.Fatal("device still connected")
	}
	_ = c.HandleCommand(ctx, protocol.CommandStop)

	if len(runner.captures) != 1 || len(runner.captures[0]) != 4 {
		t.Fatalf("captures = %v, want the partial capture", runner.captures)
	}
}

func TestUILastWriterWins(t *testing.T) {
	runner := &captureRunner{}
	c, _, first := newTestController(runner)
	second := &recordingSink{}
	c.AttachUI(second)

	// A stale disconnect must not clear the newer UI.
	c.DetachUI(first)
	if !c.UI().Connected() {
		t.Fatal("stale detach cleared the active UI")
	}

	_ = c.HandleCommand(context.Background(), protocol.CommandStop)
	if n := len(first.messages()); n != 0 {
		t.Fatalf("superseded UI received %d messages", n)
	}
	if n := len(second.messages()); n != 1 {
		t.Fatalf("active UI received %d messages, want 1", n)
	}
}

func TestUIAttachReceivesLastExchange(t *testing.T) {
	c := NewController(ControllerConfig{Last: exchange.Exchange{ID: "prev", Transcript: "hi", Reply: "hello"}}, &captureRunner{}, nil)
	ui := &recordingSink{}
	c.AttachUI(ui)

	results := ui.results(t)
	if len(results) != 1 || results[0].UserText != "hi" || results[0].BotText != "hello" || results[0].AudioURL != "" {
		t.Fatalf("results = %+v", results)
	}

	fresh := NewController(ControllerConfig{}, &captureRunner{}, nil)
	empty := &recordingSink{}
	fresh.AttachUI(empty)
	if n := len(empty.messages()); n != 0 {
		t.Fatalf("UI got %d messages with no prior exchange", n)
	}
}

// A UI attaching while a STOP publishes its exchange must end up with the
// newest exchange as its last message.
func TestUIAttachDuringStopSeesNewest(t *testing.T) {
	for i := 0; i < 200; i++ {
		c := NewController(ControllerConfig{Last: exchange.Exchange{ID: "prev", Transcript: "old"}}, &captureRunner{}, nil)
		ui := &recordingSink{}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.HandleCommand(context.Background(), protocol.CommandStop)
		}()
		go func() {
			defer wg.Done()
			c.AttachUI(ui)
		}()
		wg.Wait()

		results := ui.results(t)
		if len(results) == 0 {
			t.Fatalf("iteration %d: attached UI received nothing", i)
		}
		if last, want := results[len(results)-1], c.Current().Result(); last != want {
			t.Fatalf("iteration %d: last UI message = %+v, want %+v", i, last, want)
		}
	}
}

func TestEmitWithoutUIIsHarmless(t *testing.T) {
	c := NewController(ControllerConfig{}, &captureRunner{}, nil)
	if c.UI().Emit(protocol.Result{UserText: "x"}) {
		t.Fatal("Emit() with no UI reported delivery")
	}
	if c.Device().SendCommand(protocol.CommandStart) {
		t.Fatal("SendCommand() with no device reported delivery")
	}
	broken := &recordingSink{err: errors.New("closed")}
	c.AttachUI(broken)
	if c.UI().Emit(protocol.Result{}) {
		t.Fatal("Emit() to failing sink reported delivery")
	}
}

func TestUnknownCommand(t *testing.T) {
	c := NewController(ControllerConfig{}, &captureRunner{}, nil)
	if err := c.HandleCommand(context.Background(), protocol.Command("PAUSE")); !errors.Is(err, protocol.ErrUnknownCommand) {
		t.Fatalf("HandleCommand(PAUSE) error = %v", err)
	}
}

// Each STOP hands the pipeline exactly the frames received since the most
// recent START, and nothing else.
func TestControllerCaptureProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		runner := &captureRunner{}
		c := NewController(ControllerConfig{}, runner, nil)
		ctx := context.Background()

		var want [][]byte
		var pending []byte
		recording := false
		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 60).Draw(t, "ops")
		for i, op := range ops {
			switch op {
			case 0:
				_ = c.HandleCommand(ctx, protocol.CommandStart)
				pending, recording = nil, true
			case 1:
				_ = c.HandleCommand(ctx, protocol.CommandStop)
				if recording {
					want = append(want, pending[:len(pending)-len(pending)%audio.BytesPerSample])
				}
				pending, recording = nil, false
			default:
				f := frame(byte(i), rapid.IntRange(1, 7).Draw(t, "size"))
				c.OnFrame(f)
				if recording {
					pending = append(pending, f...)
				}
			}
		}
		if len(runner.captures) != len(want) {
			t.Fatalf("captures = %d, want %d", len(runner.captures), len(want))
		}
		for i := range want {
			if string(runner.captures[i]) != string(want[i]) {
				t.Fatalf("capture %d = %v, want %v", i, runner.captures[i], want[i])
			}
		}
	})
}
