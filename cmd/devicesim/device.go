package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/voicebridge/internal/audio"
	"github.com/antoniostano/voicebridge/internal/protocol"
)

const writeTimeout = 5 * time.Second

type source struct {
	pcm        []byte
	sampleRate int
}

func loadSource(o options) (source, error) {
	if o.wavPath == "" {
		return source{
			pcm:        audio.Tone(audio.DefaultSampleRate, o.toneHz, o.toneLength, 0.4),
			sampleRate: audio.DefaultSampleRate,
		}, nil
	}
	f, err := os.Open(o.wavPath)
	if err != nil {
		return source{}, err
	}
	defer f.Close()
	pcm, rate, err := audio.DecodeWAVPCM16LE(f)
	if err != nil {
		return source{}, fmt.Errorf("decode %s: %w", o.wavPath, err)
	}
	if len(pcm) == 0 {
		return source{}, fmt.Errorf("%s has no samples", o.wavPath)
	}
	return source{pcm: pcm, sampleRate: rate}, nil
}

// frameInterval is the playback time of one frame, divided by realtime.
func frameInterval(frameBytes, sampleRate int, realtime float64) time.Duration {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	if realtime <= 0 {
		realtime = 1
	}
	samples := frameBytes / audio.BytesPerSample
	d := time.Duration(samples) * time.Second / time.Duration(sampleRate)
	d = time.Duration(float64(d) / realtime)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

func run(ctx context.Context, o options) error {
	src, err := loadSource(o)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, o.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", o.url, err)
	}
	defer conn.Close()
	log.Printf("devicesim: connected to %s (%d bytes @ %d Hz)", o.url, len(src.pcm), src.sampleRate)
	return stream(ctx, conn, src, o)
}

// stream answers START/STOP from the bridge. Only this goroutine writes to conn.
func stream(ctx context.Context, conn *websocket.Conn, src source, o options) error {
	cmds := make(chan protocol.Command, 4)
	readErr := make(chan error, 1)
	go func() {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			cmd, err := protocol.ParseCommand(data)
			if err != nil {
				log.Printf("devicesim: ignoring message %q: %v", data, err)
				continue
			}
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	frames := audio.Frames(src.pcm, o.frameBytes)
	ticker := time.NewTicker(frameInterval(o.frameBytes, src.sampleRate, o.realtime))
	defer ticker.Stop()

	var (
		recording bool
		next      int
		sent      int
		cycles    int
	)
	for {
		select {
		case <-ctx.Done():
			closeNormal(conn)
			return nil
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		case cmd := <-cmds:
			switch cmd {
			case protocol.CommandStart:
				recording, next, sent = true, 0, 0
				log.Printf("devicesim: START, streaming")
			case protocol.CommandStop:
				if !recording {
					continue
				}
				recording = false
				cycles++
				log.Printf("devicesim: STOP after %d bytes", sent)
				if o.cycles > 0 && cycles >= o.cycles {
					closeNormal(conn)
					return nil
				}
			}
		case <-ticker.C:
			if !recording || len(frames) == 0 {
				continue
			}
			if next >= len(frames) {
				if !o.loop {
					continue
				}
				next = 0
			}
			frame := frames[next]
			next++
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				if errors.Is(err, websocket.ErrCloseSent) {
					return nil
				}
				return fmt.Errorf("write frame: %w", err)
			}
			sent += len(frame)
		}
	}
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
