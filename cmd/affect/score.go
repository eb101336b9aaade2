package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-affect/pkg/face"
	"github.com/teslashibe/go-affect/pkg/protocol"
)

// maxLine bounds one JSON-lines frame
const maxLine = 1 << 20

func newScoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "score [frames.jsonl]",
		Short: "Score face frames from a JSON-lines file or stdin",
		Long: `Reads one face frame per line ({"blend_shapes": {...}, "transform": [[...]]})
and prints one smoothed reading per frame as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return scoreFrames(in, cmd.OutOrStdout(), face.NewAnalyzer(a.cfg.Face))
		},
	}
}

// scoreFrames runs every frame through one analyzer so smoothing carries
// across lines. Blank lines are skipped.
func scoreFrames(r io.Reader, w io.Writer, analyzer *face.Analyzer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	enc := json.NewEncoder(w)

	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}

		var data protocol.FaceFrameData
		if err := json.Unmarshal(sc.Bytes(), &data); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		frameID := data.FrameID
		if frameID == 0 {
			frameID = uint64(line)
		}

		res := analyzer.Analyze(data.Frame())
		if err := enc.Encode(protocol.FaceReadingData{
			FrameID:    frameID,
			Emotion:    res.Reading.Emotion,
			Confidence: res.Reading.Confidence,
			Scores:     res.Scores[:],
			Pose:       res.Pose,
		}); err != nil {
			return err
		}
	}
	return sc.Err()
}
