package soap

import (
	"strconv"
	"strings"
)

// Placeholders used when patient metadata is absent.
const (
	UnknownAge          = "unknown"
	UnspecifiedGender   = "not specified"
	UnspecifiedPrompt   = "not specified"
	UnspecifiedTemplate = "chief complaint not specified"
)

// PatientContext is the optional patient metadata supplied with a transcript.
// Every field may be absent.
type PatientContext struct {
	// Age in years. Nil or non-positive means unknown.
	Age *int

	Gender         string
	ChiefComplaint string
	DoctorNotes    string
}

// Context is the shared, read-only input of all section generators for one
// request. It is built once by [BuildContext].
type Context struct {
	Transcript string
	Patient    PatientContext
	Hits       LexiconHits
}

// BuildContext normalizes patient metadata and scans transcript against the
// lexicon.
func BuildContext(transcript string, patient PatientContext) *Context {
	p := PatientContext{
		Gender:         strings.TrimSpace(patient.Gender),
		ChiefComplaint: strings.TrimSpace(patient.ChiefComplaint),
		DoctorNotes:    strings.TrimSpace(patient.DoctorNotes),
	}
	if patient.Age != nil && *patient.Age > 0 {
		age := *patient.Age
		p.Age = &age
	}
	return &Context{
		Transcript: transcript,
		Patient:    p,
		Hits:       ScanLexicon(transcript),
	}
}

// AgeKnown reports whether the patient's age was supplied.
func (c *Context) AgeKnown() bool { return c.Patient.Age != nil }

// Age returns the age in years or [UnknownAge].
func (c *Context) Age() string {
	if c.Patient.Age == nil {
		return UnknownAge
	}
	return strconv.Itoa(*c.Patient.Age)
}

// Gender returns the gender or [UnspecifiedGender].
func (c *Context) Gender() string {
	if c.Patient.Gender == "" {
		return UnspecifiedGender
	}
	return c.Patient.Gender
}

// Complaint returns the chief complaint or placeholder when absent.
func (c *Context) Complaint(placeholder string) string {
	if c.Patient.ChiefComplaint == "" {
		return placeholder
	}
	return c.Patient.ChiefComplaint
}

// Symptoms returns the lexicon symptom hits.
func (c *Context) Symptoms() []string { return c.Hits[Symptoms] }
