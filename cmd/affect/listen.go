package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-affect/internal/log"
	"github.com/teslashibe/go-affect/pkg/audioio"
	_ "github.com/teslashibe/go-affect/pkg/audioio/opuscodec"
	"github.com/teslashibe/go-affect/pkg/prosody"
)

func newListenCmd(a *app) *cobra.Command {
	var (
		duration time.Duration
		mock     bool
		addr     string
		codec    string
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Record one voice session from an RTP stream and classify it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.RTP
			if mock {
				cfg.Backend = audioio.BackendMock
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if codec != "" {
				cfg.Codec = codec
			}

			logger := log.Component("listen")

			src, err := audioio.NewSource(cfg, logger)
			if err != nil {
				return err
			}
			defer src.Close()

			vcfg := a.cfg.Voice
			vcfg.SampleRate = cfg.SampleRate
			rec := prosody.NewRecorder(vcfg, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			captureCtx, cancel := context.WithTimeout(ctx, duration)
			defer cancel()

			if err := src.Start(captureCtx); err != nil {
				return err
			}
			// The recorder outlives capture so Stop can drain the queue.
			if err := rec.Start(ctx); err != nil {
				return err
			}

			if rtp, ok := src.(*audioio.RTPSource); ok {
				logger.Info("listening", "addr", rtp.Addr(), "codec", cfg.Codec, "duration", duration)
			} else {
				logger.Info("listening", "backend", src.Name(), "duration", duration)
			}

			if err := rec.Capture(captureCtx, src); err != nil && captureCtx.Err() == nil {
				rec.Reset()
				return err
			}
			src.Stop()

			var out fileResult
			if res, ok := rec.Stop(); ok {
				out.Classified = true
				out.Label = res.Label
				out.Stats = &res.Stats
			}
			out.Session = rec.Session()

			if stats, ok := src.(audioio.SourceWithStats); ok {
				s := stats.Stats()
				logger.Info("capture finished", "chunks", s.ChunksRead, "dropped", s.Dropped)
			}

			return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", 5*time.Second, "how long to record")
	cmd.Flags().BoolVar(&mock, "mock", false, "use a synthetic source instead of RTP")
	cmd.Flags().StringVar(&addr, "addr", "", "UDP listen address (overrides rtp.addr)")
	cmd.Flags().StringVar(&codec, "codec", "", "RTP payload codec: l16 or opus (overrides rtp.codec)")
	return cmd
}
