package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/teslashibe/go-affect/internal/log"
	"github.com/teslashibe/go-affect/pkg/audioio"
	"github.com/teslashibe/go-affect/pkg/prosody"
)

// fileResult is one line of classify output
type fileResult struct {
	File       string          `json:"file,omitempty"`
	Classified bool            `json:"classified"`
	Label      prosody.Label   `json:"label,omitempty"`
	Stats      *prosody.Stats  `json:"stats,omitempty"`
	Session    prosody.Session `json:"session"`
	Error      string          `json:"error,omitempty"`
}

func newClassifyCmd(a *app) *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "classify file.wav [file.wav...]",
		Short: "Classify the voice tone of WAV recordings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := classifyFiles(cmd.Context(), args, a.cfg.Voice, jobs, log.Component("classify"))

			enc := json.NewEncoder(cmd.OutOrStdout())
			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
				}
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "files classified concurrently")
	return cmd
}

// classifyFiles classifies each file on a bounded pool. Results keep the
// order of paths.
func classifyFiles(ctx context.Context, paths []string, cfg prosody.Config, jobs int, logger *slog.Logger) []fileResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if jobs <= 0 {
		jobs = 1
	}

	p := pool.New().WithMaxGoroutines(jobs)
	results := make([]fileResult, len(paths))

	// each task owns one slot; Wait orders the writes before the return
	for idx, path := range paths {
		idx, path := idx, path
		p.Go(func() {
			results[idx] = classifyFile(ctx, path, cfg, logger)
		})
	}

	p.Wait()
	return results
}

// classifyFile records a whole WAV file as one voice session.
func classifyFile(ctx context.Context, path string, cfg prosody.Config, logger *slog.Logger) fileResult {
	out := fileResult{File: path}

	pcm, err := audioio.LoadWAV(path)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	cfg.SampleRate = pcm.SampleRate

	rec := prosody.NewRecorder(cfg, logger.With("file", path))
	if err := rec.Start(ctx); err != nil {
		out.Error = err.Error()
		return out
	}
	for _, buf := range audioio.Split(pcm.Mono(), cfg.BufferSize) {
		if err := rec.FeedPCM16(buf); err != nil {
			break
		}
	}

	res, ok := rec.Stop()
	out.Session = rec.Session()
	if ok {
		out.Classified = true
		out.Label = res.Label
		out.Stats = &res.Stats
	}
	return out
}
