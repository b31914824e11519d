package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/elektron/internal/confidence"
	"github.com/MrWong99/elektron/pkg/types"
)

// transcriptFile is the JSON shape accepted by confidence: the segments
// array of a /transcribe/audio response, or a whisper verbose_json result.
type transcriptFile struct {
	Text     string `json:"text"`
	Segments []struct {
		Start      float64  `json:"start"`
		End        float64  `json:"end"`
		Text       string   `json:"text"`
		AvgLogProb *float64 `json:"avg_logprob"`
	} `json:"segments"`
}

func (f transcriptFile) transcript() types.Transcript {
	t := types.Transcript{Text: f.Text}
	for _, s := range f.Segments {
		t.Segments = append(t.Segments, types.Segment{
			Start:      time.Duration(s.Start * float64(time.Second)),
			End:        time.Duration(s.End * float64(time.Second)),
			Text:       s.Text,
			AvgLogProb: s.AvgLogProb,
		})
	}
	if t.Text == "" {
		for _, s := range t.Segments {
			t.Text += s.Text + " "
		}
	}
	return t
}

func newConfidenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confidence [file]",
		Short: "Score a transcript's segment log-probabilities",
		Long:  "Score a transcript JSON file (or stdin) with segment avg_logprob values. Prints null when no segment carries one.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			b, err := readFile(cmd, path)
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}
			var f transcriptFile
			if err := json.Unmarshal(b, &f); err != nil {
				return fmt.Errorf("decode transcript: %w", err)
			}
			t := f.transcript()
			score, err := confidence.ForTranscript(t)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"confidence": score,
				"segments":   len(t.Segments),
			})
		},
	}
}
