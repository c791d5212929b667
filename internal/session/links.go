package session

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/antoniostano/voicebridge/internal/observability"
	"github.com/antoniostano/voicebridge/internal/protocol"
)

const (
	LinkDevice = "device"
	LinkUI     = "ui"
)

// slot holds the single active connection of a link. A newer connection
// replaces the older one, which becomes inert.
type slot struct {
	name    string
	mu      sync.RWMutex
	sink    Sink
	metrics *observability.Metrics
}

func (s *slot) attach(sink Sink) {
	s.mu.Lock()
	replaced := s.sink != nil && s.sink != sink
	s.sink = sink
	s.mu.Unlock()
	if replaced {
		log.Printf("%s link: new connection supersedes the previous one", s.name)
	}
	s.metrics.SetLinkConnected(s.name, true)
}

// detach clears the slot only if it still holds sink.
func (s *slot) detach(sink Sink) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != sink {
		return false
	}
	s.sink = nil
	s.metrics.SetLinkConnected(s.name, false)
	return true
}

func (s *slot) current() Sink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sink
}

// send writes payload to the active connection. No connection is not an error.
func (s *slot) send(payload []byte) bool {
	sink := s.current()
	if sink == nil {
		log.Printf("%s link: no client connected, dropping %d byte message", s.name, len(payload))
		return false
	}
	if err := sink.SendText(payload); err != nil {
		log.Printf("%s link: send failed: %v", s.name, err)
		s.metrics.ObserveWriteError(s.name)
		return false
	}
	s.metrics.ObserveMessage(s.name, "out")
	return true
}

// DeviceLink is the channel to the capture device.
type DeviceLink struct {
	slot
	accepting atomic.Bool
}

func NewDeviceLink(metrics *observability.Metrics) *DeviceLink {
	return &DeviceLink{slot: slot{name: LinkDevice, metrics: metrics}}
}

func (d *DeviceLink) Attach(sink Sink)      { d.attach(sink) }
func (d *DeviceLink) Detach(sink Sink) bool { return d.detach(sink) }
func (d *DeviceLink) Connected() bool       { return d.current() != nil }

// SetAccepting is driven by the controller under its state lock.
func (d *DeviceLink) SetAccepting(v bool) { d.accepting.Store(v) }
func (d *DeviceLink) Accepting() bool     { return d.accepting.Load() }

// SendCommand forwards START or STOP to the device, best effort.
func (d *DeviceLink) SendCommand(cmd protocol.Command) bool {
	return d.send([]byte(cmd))
}

// UILink is the channel to the browser UI.
type UILink struct {
	slot
}

func NewUILink(metrics *observability.Metrics) *UILink {
	return &UILink{slot: slot{name: LinkUI, metrics: metrics}}
}

func (u *UILink) Attach(sink Sink)      { u.attach(sink) }
func (u *UILink) Detach(sink Sink) bool { return u.detach(sink) }
func (u *UILink) Connected() bool       { return u.current() != nil }

// Emit pushes a result to the current UI, if any.
func (u *UILink) Emit(r protocol.Result) bool {
	payload, err := protocol.EncodeResult(r)
	if err != nil {
		log.Printf("ui link: encode result: %v", err)
		return false
	}
	return u.send(payload)
}

func emitTo(sink Sink, r protocol.Result) error {
	payload, err := protocol.EncodeResult(r)
	if err != nil {
		return err
	}
	return sink.SendText(payload)
}
