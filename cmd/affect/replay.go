package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-affect/internal/log"
	"github.com/teslashibe/go-affect/pkg/audioio"
	"github.com/teslashibe/go-affect/pkg/client"
	"github.com/teslashibe/go-affect/pkg/protocol"
)

// replayOptions selects what replay sends and where
type replayOptions struct {
	Server     string
	Sensor     string
	Frames     string
	WAV        string
	FPS        float64
	BufferSize int
	Timeout    time.Duration
}

func newReplayCmd(a *app) *cobra.Command {
	opts := replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Stream recorded frames and audio to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Frames == "" && opts.WAV == "" {
				return errors.New("nothing to replay: set --frames and/or --wav")
			}
			opts.BufferSize = a.cfg.Voice.BufferSize
			return replay(cmd.Context(), opts, cmd.OutOrStdout(), log.Component("replay"))
		},
	}

	cmd.Flags().StringVarP(&opts.Server, "server", "s", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&opts.Sensor, "sensor", "replay", "sensor id")
	cmd.Flags().StringVar(&opts.Frames, "frames", "", "JSON-lines face frames file")
	cmd.Flags().StringVar(&opts.WAV, "wav", "", "WAV file sent as one voice session")
	cmd.Flags().Float64Var(&opts.FPS, "fps", 30, "frame rate (0 sends as fast as possible)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "how long to wait for replies")
	return cmd
}

// replay sends frames then audio over one sensor connection and writes
// every reply it gets as a JSON line.
func replay(ctx context.Context, opts replayOptions, w io.Writer, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.BufferSize < 2 {
		opts.BufferSize = 1024
	}

	var (
		outMu    sync.Mutex
		enc      = json.NewEncoder(w)
		readings atomic.Int64
		results  = make(chan *protocol.VoiceResultData, 1)
	)
	emit := func(v interface{}) {
		outMu.Lock()
		defer outMu.Unlock()
		enc.Encode(v)
	}

	c := client.New(opts.Sensor, logger)
	c.OnReading = func(r *protocol.FaceReadingData) {
		readings.Add(1)
		emit(r)
	}
	c.OnVoiceResult = func(r *protocol.VoiceResultData) {
		emit(r)
		results <- r
	}
	c.OnError = func(e *protocol.ErrorData) {
		emit(e)
	}

	if err := c.Dial(ctx, opts.Server); err != nil {
		return err
	}
	defer c.Close()

	sent := int64(0)
	if opts.Frames != "" {
		n, err := sendFrames(ctx, c, opts.Frames, opts.FPS)
		if err != nil {
			return err
		}
		sent = n
		logger.Info("frames sent", "count", n)
	}

	deadline := time.Now().Add(opts.Timeout)
	for readings.Load() < sent && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := readings.Load(); got < sent {
		logger.Warn("missing readings", "sent", sent, "received", got)
	}

	if opts.WAV == "" {
		return nil
	}

	pcm, err := audioio.LoadWAV(opts.WAV)
	if err != nil {
		return err
	}
	if err := c.StartVoice(pcm.SampleRate); err != nil {
		return err
	}
	for _, buf := range audioio.Split(pcm.Mono(), opts.BufferSize) {
		if err := c.SendPCM(buf, pcm.SampleRate); err != nil {
			return err
		}
	}
	if err := c.StopVoice(); err != nil {
		return err
	}

	select {
	case <-results:
		return nil
	case <-c.Done():
		return errors.New("connection closed before voice result")
	case <-time.After(opts.Timeout):
		return fmt.Errorf("no voice result within %s", opts.Timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendFrames sends every frame in a JSON-lines file, paced at fps.
func sendFrames(ctx context.Context, c *client.Client, path string, fps float64) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var tick <-chan time.Time
	if fps > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
		defer ticker.Stop()
		tick = ticker.C
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var sent int64
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}

		var data protocol.FaceFrameData
		if err := json.Unmarshal(sc.Bytes(), &data); err != nil {
			return sent, fmt.Errorf("%s:%d: %w", path, line, err)
		}

		if tick != nil && sent > 0 {
			select {
			case <-tick:
			case <-ctx.Done():
				return sent, ctx.Err()
			}
		}

		if _, err := c.SendFrame(data.Frame()); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, sc.Err()
}
