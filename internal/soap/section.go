package soap

import "fmt"

// Section identifies one of the four parts of a SOAP note.
type Section int

const (
	Subjective Section = iota
	Objective
	Assessment
	Plan
)

// Sections lists all sections in note order.
var Sections = [...]Section{Subjective, Objective, Assessment, Plan}

// String returns the lower-case section name used in JSON, metrics and logs.
func (s Section) String() string {
	switch s {
	case Subjective:
		return "subjective"
	case Objective:
		return "objective"
	case Assessment:
		return "assessment"
	case Plan:
		return "plan"
	default:
		return fmt.Sprintf("section(%d)", int(s))
	}
}

// Label returns the heading the model is asked to continue after, e.g.
// "Subjective".
func (s Section) Label() string {
	switch s {
	case Subjective:
		return "Subjective"
	case Objective:
		return "Objective"
	case Assessment:
		return "Assessment"
	case Plan:
		return "Plan"
	default:
		return s.String()
	}
}

// MarshalText implements [encoding.TextMarshaler] so sections can key JSON
// maps.
func (s Section) MarshalText() ([]byte, error) {
	if s < Subjective || s > Plan {
		return nil, fmt.Errorf("soap: unknown section %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (s *Section) UnmarshalText(b []byte) error {
	for _, sec := range Sections {
		if sec.String() == string(b) {
			*s = sec
			return nil
		}
	}
	return fmt.Errorf("soap: unknown section %q", b)
}
