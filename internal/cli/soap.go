package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/elektron/internal/soap"
)

func newSynthesizeCmd(opts *options) *cobra.Command {
	var (
		age                     int
		gender, complaint, note string
		author                  string
	)
	cmd := &cobra.Command{
		Use:   "synthesize [transcript]",
		Short: "Generate a SOAP note from a transcript",
		Long:  "Generate a SOAP note. The transcript can be a positional arg or piped via stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validateFormat(); err != nil {
				return err
			}
			transcript, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}

			patient := soap.PatientContext{Gender: gender, ChiefComplaint: complaint, DoctorNotes: note}
			if age > 0 {
				patient.Age = &age
			}
			res, err := engine.Synthesize(cmd.Context(), transcript, patient)
			if err != nil {
				return err
			}
			n := soap.NewNote(res, author, soap.PatientIDFromComplaint(complaint), engine.Now().UTC())

			if opts.format == formatText {
				_, err := fmt.Fprint(cmd.OutOrStdout(), soap.FormatText(n, engine.Now()))
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"soap_note":        n,
				"confidence_score": res.Confidence,
				"strategy":         res.Strategy,
				"sources":          res.Sources,
			})
		},
	}
	cmd.Flags().IntVar(&age, "age", 0, "Patient age in years (0 = unknown)")
	cmd.Flags().StringVar(&gender, "gender", "", "Patient gender")
	cmd.Flags().StringVar(&complaint, "complaint", "", "Chief complaint")
	cmd.Flags().StringVar(&note, "notes", "", "Doctor notes")
	cmd.Flags().StringVar(&author, "author", "", "Author email stamped on the note")
	return cmd
}

func newRefineCmd(opts *options) *cobra.Command {
	var notePath, feedback string
	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Refine a SOAP note with physician feedback",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validateFormat(); err != nil {
				return err
			}
			n, err := readNote(cmd, notePath)
			if err != nil {
				return err
			}
			engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			refined, err := engine.Refine(cmd.Context(), n, feedback)
			if err != nil {
				return err
			}
			if opts.format == formatText {
				_, err := fmt.Fprint(cmd.OutOrStdout(), soap.FormatText(refined, engine.Now()))
				return err
			}
			return printJSON(cmd.OutOrStdout(), refined)
		},
	}
	cmd.Flags().StringVarP(&notePath, "note", "n", "-", "Note JSON file, - for stdin")
	cmd.Flags().StringVar(&feedback, "feedback", "", "Refinement notes (required)")
	_ = cmd.MarkFlagRequired("feedback")
	return cmd
}

func newExportCmd() *cobra.Command {
	var notePath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a SOAP note as plain text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := readNote(cmd, notePath)
			if err != nil {
				return err
			}
			if err := n.Validate(); err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), soap.FormatText(n, time.Now()))
			return err
		},
	}
	cmd.Flags().StringVarP(&notePath, "note", "n", "-", "Note JSON file, - for stdin")
	return cmd
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the specialty note outlines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), soap.SpecialtyTemplates())
		},
	}
}

// readNote decodes a note as written by synthesize. Both the bare note and
// the synthesize envelope with a soap_note field are accepted.
func readNote(cmd *cobra.Command, path string) (soap.Note, error) {
	b, err := readFile(cmd, path)
	if err != nil {
		return soap.Note{}, fmt.Errorf("read note: %w", err)
	}
	var envelope struct {
		Note *soap.Note `json:"soap_note"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return soap.Note{}, fmt.Errorf("decode note: %w", err)
	}
	if envelope.Note != nil {
		return *envelope.Note, nil
	}
	var n soap.Note
	if err := json.Unmarshal(b, &n); err != nil {
		return soap.Note{}, fmt.Errorf("decode note: %w", err)
	}
	return n, nil
}
