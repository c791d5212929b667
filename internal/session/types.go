package session

import (
	"time"
)

type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// Session is the recording session between a START and the next STOP.
type Session struct {
	ID             string    `json:"session_id"`
	Active         bool      `json:"active"`
	StartedAt      time.Time `json:"started_at"`
	FramesAccepted int       `json:"frames_accepted"`
	FramesDropped  int       `json:"frames_dropped"`
}

// Sink is the write side of one websocket connection. Implementations must
// be safe for concurrent use and must not block on a slow peer.
type Sink interface {
	SendText(payload []byte) error
}

// Snapshot is the controller state served at /v1/session.
type Snapshot struct {
	State           State     `json:"state"`
	SessionID       string    `json:"session_id,omitempty"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	FramesAccepted  int       `json:"frames_accepted"`
	FramesDropped   int       `json:"frames_dropped"`
	BufferedBytes   int       `json:"buffered_bytes"`
	BufferedSeconds float64   `json:"buffered_seconds"`
	DeviceConnected bool      `json:"device_connected"`
	UIConnected     bool      `json:"ui_connected"`
	LastExchangeID  string    `json:"last_exchange_id,omitempty"`
}
