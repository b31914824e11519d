package soap

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// patientIDLen is the number of chief-complaint runes used as patient ID.
const patientIDLen = 20

// ErrIncompleteNote is returned when a note supplied for refinement or export
// has an empty section.
var ErrIncompleteNote = errors.New("note has an empty section")

// Note is a SOAP note as handed to callers. It is a value: refinement returns
// a new Note and leaves the original untouched.
type Note struct {
	ID          string    `json:"id"`
	Subjective  string    `json:"subjective"`
	Objective   string    `json:"objective"`
	Assessment  string    `json:"assessment"`
	Plan        string    `json:"plan"`
	GeneratedAt time.Time `json:"generated_at"`

	// Author is the identity of the requesting clinician, supplied by the
	// caller.
	Author string `json:"doctor_email"`

	PatientID string `json:"patient_id,omitempty"`
}

// Section returns the text of section s.
func (n Note) Section(s Section) string {
	switch s {
	case Subjective:
		return n.Subjective
	case Objective:
		return n.Objective
	case Assessment:
		return n.Assessment
	default:
		return n.Plan
	}
}

func (n *Note) setSection(s Section, text string) {
	switch s {
	case Subjective:
		n.Subjective = text
	case Objective:
		n.Objective = text
	case Assessment:
		n.Assessment = text
	default:
		n.Plan = text
	}
}

// Validate reports the sections of n that are blank.
func (n Note) Validate() error {
	var errs []error
	for _, s := range Sections {
		if strings.TrimSpace(n.Section(s)) == "" {
			errs = append(errs, fmt.Errorf("%s: %w", s, ErrIncompleteNote))
		}
	}
	return errors.Join(errs...)
}

// Result is the output of one synthesis. It is built per request and never
// cached.
type Result struct {
	Subjective string
	Objective  string
	Assessment string
	Plan       string

	// Confidence is the strategy-level trust in [0, 1]:
	// [ModelConfidence] or [TemplateConfidence].
	Confidence float64

	// Strategy is the name of the primary strategy used.
	Strategy string

	// Sources records which strategy produced each section.
	Sources map[Section]string

	Elapsed time.Duration
}

// Fallbacks returns the number of sections not produced by r.Strategy.
func (r *Result) Fallbacks() int {
	n := 0
	for _, src := range r.Sources {
		if src != r.Strategy {
			n++
		}
	}
	return n
}

// NewNote stamps r with a fresh ULID, the generation time, the author and
// the patient ID.
func NewNote(r *Result, author, patientID string, at time.Time) Note {
	return Note{
		ID:          newID(at),
		Subjective:  r.Subjective,
		Objective:   r.Objective,
		Assessment:  r.Assessment,
		Plan:        r.Plan,
		GeneratedAt: at,
		Author:      author,
		PatientID:   patientID,
	}
}

// PatientIDFromComplaint derives a patient identifier from the first 20
// characters of a chief complaint. Blank complaints yield "".
func PatientIDFromComplaint(complaint string) string {
	complaint = strings.TrimSpace(complaint)
	if utf8.RuneCountInString(complaint) <= patientIDLen {
		return complaint
	}
	return string([]rune(complaint)[:patientIDLen])
}

func newID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

// ── Plain-text export ────────────────────────────────────────────────────────

// FormatText renders n as a plain-text document headed with the export time.
func FormatText(n Note, exportedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SOAP NOTE - Generated on %s\n", exportedAt.Format(time.DateTime))
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n\n")
	for _, s := range Sections {
		b.WriteString(strings.ToUpper(s.String()))
		b.WriteString(":\n")
		b.WriteString(strings.Repeat("-", 20))
		b.WriteString("\n")
		b.WriteString(n.Section(s))
		b.WriteString("\n\n")
	}
	return b.String()
}
