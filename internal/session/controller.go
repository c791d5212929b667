package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/voicebridge/internal/audio"
	"github.com/antoniostano/voicebridge/internal/exchange"
	"github.com/antoniostano/voicebridge/internal/observability"
	"github.com/antoniostano/voicebridge/internal/protocol"
	"github.com/antoniostano/voicebridge/internal/voice"
)

// Runner processes a finished capture into an exchange.
type Runner interface {
	Run(ctx context.Context, c voice.Capture) exchange.Exchange
}

// Controller owns the recording session, the audio buffer, both links and
// the last exchange.
//
// cycleMu serializes commands, so at most one pipeline is in flight and a
// START issued during a pipeline waits for it. mu guards session state and
// the buffer; frame appends only take mu and never wait on a pipeline.
type Controller struct {
	cycleMu sync.Mutex

	mu      sync.Mutex
	state   State
	session Session
	buffer  *audio.Buffer
	current exchange.Exchange

	device     *DeviceLink
	ui         *UILink
	pipeline   Runner
	metrics    *observability.Metrics
	sampleRate int
	now        func() time.Time
}

type ControllerConfig struct {
	SampleRate int
	// Last seeds the exchange shown to the first UI after a restart.
	Last exchange.Exchange
}

func NewController(cfg ControllerConfig, pipeline Runner, metrics *observability.Metrics) *Controller {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	return &Controller{
		state:      StateIdle,
		buffer:     audio.NewBuffer(),
		current:    cfg.Last,
		device:     NewDeviceLink(metrics),
		ui:         NewUILink(metrics),
		pipeline:   pipeline,
		metrics:    metrics,
		sampleRate: cfg.SampleRate,
		now:        time.Now,
	}
}

func (c *Controller) Device() *DeviceLink { return c.device }
func (c *Controller) UI() *UILink         { return c.ui }

// HandleCommand applies a UI command. ctx bounds the pipeline run on STOP and
// should live as long as the process, not the UI connection.
func (c *Controller) HandleCommand(ctx context.Context, cmd protocol.Command) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	switch cmd {
	case protocol.CommandStart:
		c.start()
		return nil
	case protocol.CommandStop:
		c.stop(ctx)
		return nil
	default:
		return fmt.Errorf("%w: %q", protocol.ErrUnknownCommand, cmd)
	}
}

func (c *Controller) start() {
	c.mu.Lock()
	event := "start"
	if c.state == StateRecording {
		event = "restart"
	}
	c.buffer.Reset()
	c.session = Session{ID: uuid.NewString(), Active: true, StartedAt: c.now().UTC()}
	c.state = StateRecording
	c.device.SetAccepting(true)
	id := c.session.ID
	c.mu.Unlock()

	c.metrics.ObserveSession(event)
	log.Printf("session: %s session=%s", event, id)
	c.device.SendCommand(protocol.CommandStart)
}

func (c *Controller) stop(ctx context.Context) {
	// Flip accepting and take the buffer in one critical section so no late
	// frame can land in this cycle or the next.
	c.mu.Lock()
	var captured *audio.Buffer
	sess := c.session
	if c.state == StateRecording {
		captured = c.buffer
		c.buffer = audio.NewBuffer()
	}
	c.device.SetAccepting(false)
	c.state = StateIdle
	c.session = Session{}
	c.mu.Unlock()

	if sess.Active {
		c.metrics.ObserveSession("stop")
		log.Printf("session: stop session=%s frames=%d dropped=%d bytes=%d",
			sess.ID, sess.FramesAccepted, sess.FramesDropped, captured.TotalBytes())
	} else {
		c.metrics.ObserveSession("stop_idle")
		log.Printf("session: stop while idle")
	}
	// An idle device has nothing to stop.
	if sess.Active {
		c.device.SendCommand(protocol.CommandStop)
	}

	ex := c.pipeline.Run(ctx, voice.Capture{SessionID: sess.ID, Buffer: captured})

	// Emit under mu so a UI attaching concurrently never replays a stale
	// exchange after this one. Sink sends are queued, not blocking.
	c.mu.Lock()
	c.current = ex
	c.ui.Emit(ex.Result())
	c.mu.Unlock()
}

// OnFrame buffers a device audio frame while a session is accepting and
// discards it otherwise.
func (c *Controller) OnFrame(frame []byte) {
	if len(frame) == 0 {
		return
	}
	c.mu.Lock()
	accepted := c.state == StateRecording && c.device.Accepting()
	var dropped int
	if accepted {
		c.buffer.Append(frame)
		c.session.FramesAccepted++
	} else {
		c.session.FramesDropped++
		dropped = c.session.FramesDropped
	}
	c.mu.Unlock()

	c.metrics.ObserveFrame(accepted, len(frame))
	if !accepted && (dropped == 1 || dropped%250 == 0) {
		log.Printf("session: discarding device audio while idle (%d frames so far)", dropped)
	}
}

func (c *Controller) AttachDevice(sink Sink) {
	c.device.Attach(sink)
	log.Printf("device link: connected")
}

// DetachDevice never ends a session; a later STOP runs on what was captured.
func (c *Controller) DetachDevice(sink Sink) {
	if c.device.Detach(sink) {
		log.Printf("device link: disconnected")
	}
}

// AttachUI makes sink the active UI and sends it the last exchange, if any.
func (c *Controller) AttachUI(sink Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ui.Attach(sink)
	log.Printf("ui link: connected")
	if c.current.IsZero() {
		return
	}
	if err := emitTo(sink, c.current.Result()); err != nil {
		log.Printf("ui link: send last exchange: %v", err)
	}
}

func (c *Controller) DetachUI(sink Sink) {
	if c.ui.Detach(sink) {
		log.Printf("ui link: disconnected")
	}
}

func (c *Controller) Current() exchange.Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:           c.state,
		SessionID:       c.session.ID,
		StartedAt:       c.session.StartedAt,
		FramesAccepted:  c.session.FramesAccepted,
		FramesDropped:   c.session.FramesDropped,
		BufferedBytes:   c.buffer.TotalBytes(),
		BufferedSeconds: c.buffer.DurationSeconds(c.sampleRate),
		DeviceConnected: c.device.Connected(),
		UIConnected:     c.ui.Connected(),
		LastExchangeID:  c.current.ID,
	}
}
