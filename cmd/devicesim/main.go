// Command devicesim behaves like the capture device: it connects to the
// bridge's /ws endpoint, waits for START and streams PCM frames until STOP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := defaultOptions()
	cmd := &cobra.Command{
		Use:          "devicesim",
		Short:        "Simulate the audio capture device against a running bridge",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.url, "url", opts.url, "device websocket URL")
	f.StringVar(&opts.wavPath, "wav", "", "16-bit PCM WAV file to stream (default: generated tone)")
	f.IntVar(&opts.frameBytes, "frame-bytes", opts.frameBytes, "bytes per binary frame")
	f.Float64Var(&opts.toneHz, "tone-hz", opts.toneHz, "tone frequency when no WAV file is given")
	f.DurationVar(&opts.toneLength, "tone-length", opts.toneLength, "tone length when no WAV file is given")
	f.Float64Var(&opts.realtime, "realtime", opts.realtime, "pacing multiplier (1.0=realtime)")
	f.IntVar(&opts.cycles, "cycles", 0, "exit after this many START/STOP cycles (0=run until interrupted)")
	f.BoolVar(&opts.loop, "loop", true, "repeat the source until STOP")
	return cmd
}

type options struct {
	url        string
	wavPath    string
	frameBytes int
	toneHz     float64
	toneLength time.Duration
	realtime   float64
	cycles     int
	loop       bool
}

func defaultOptions() options {
	return options{
		url:        "ws://127.0.0.1:8000/ws",
		frameBytes: 1024,
		toneHz:     440,
		toneLength: 3 * time.Second,
		realtime:   1,
		loop:       true,
	}
}

func (o options) validate() error {
	if o.url == "" {
		return fmt.Errorf("url is required")
	}
	if o.frameBytes < 2 || o.frameBytes%2 != 0 {
		return fmt.Errorf("frame-bytes must be a positive even number")
	}
	if o.realtime <= 0 {
		return fmt.Errorf("realtime must be > 0")
	}
	if o.cycles < 0 {
		return fmt.Errorf("cycles must be >= 0")
	}
	return nil
}
