package httpapi

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/voicebridge/internal/observability"
	"github.com/antoniostano/voicebridge/internal/protocol"
	"github.com/antoniostano/voicebridge/internal/session"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 90 * time.Second
	pingInterval = 30 * time.Second
)

var (
	errSinkClosed = errors.New("connection closed")
	errSinkFull   = errors.New("outbound queue full")
)

// wsSink queues text messages for a connection's single writer goroutine.
type wsSink struct {
	conn    *websocket.Conn
	link    string
	metrics *observability.Metrics

	mu       sync.Mutex
	closed   bool
	outbound chan []byte
	done     chan struct{}
}

func newWSSink(conn *websocket.Conn, link string, metrics *observability.Metrics) *wsSink {
	return &wsSink{
		conn:     conn,
		link:     link,
		metrics:  metrics,
		outbound: make(chan []byte, 32),
		done:     make(chan struct{}),
	}
}

func (s *wsSink) SendText(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	select {
	case s.outbound <- payload:
		return nil
	default:
		return errSinkFull
	}
}

func (s *wsSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// writeLoop owns all writes to conn, including keepalive pings.
func (s *wsSink) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.metrics.ObserveWriteError(s.link)
				log.Printf("%s link: write failed: %v", s.link, err)
				s.close()
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				_ = s.conn.Close()
				return
			}
		}
	}
}

func prepareReader(conn *websocket.Conn, limit int64) {
	conn.SetReadLimit(limit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func logReadError(link string, err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return
	}
	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("%s link: frame exceeds size limit, closing", link)
		return
	}
	log.Printf("%s link: read: %v", link, err)
}

func (s *Server) handleDeviceWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sink := newWSSink(conn, session.LinkDevice, s.metrics)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sink.writeLoop()
	}()
	s.controller.AttachDevice(sink)
	log.Printf("device link: %s connected", r.RemoteAddr)

	prepareReader(conn, int64(s.cfg.MaxFrameBytes))
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			logReadError(session.LinkDevice, err)
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		s.metrics.ObserveMessage(session.LinkDevice, "in")
		switch msgType {
		case websocket.BinaryMessage:
			s.controller.OnFrame(data)
		case websocket.TextMessage:
			log.Printf("device: %s", truncate(string(data), 200))
		}
	}

	s.controller.DetachDevice(sink)
	sink.close()
	<-writerDone
}

func (s *Server) handleUIWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sink := newWSSink(conn, session.LinkUI, s.metrics)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sink.writeLoop()
	}()
	s.controller.AttachUI(sink)

	// Commands run in order on their own goroutine so a long pipeline does
	// not stall this reader's pong handling. They outlive the connection.
	// Once the queue is full the reader waits rather than drop a command.
	commands := make(chan protocol.Command, 8)
	go func() {
		for cmd := range commands {
			if err := s.controller.HandleCommand(s.ctx, cmd); err != nil {
				log.Printf("ui link: command %s: %v", cmd, err)
			}
		}
	}()

	prepareReader(conn, 4<<10)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			logReadError(session.LinkUI, err)
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		s.metrics.ObserveMessage(session.LinkUI, "in")
		cmd, err := protocol.ParseCommand(data)
		if err != nil {
			log.Printf("ui link: ignoring message: %v", err)
			continue
		}
		select {
		case commands <- cmd:
		case <-s.ctx.Done():
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}

	close(commands)
	s.controller.DetachUI(sink)
	sink.close()
	<-writerDone
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
