package soap

import "strings"

// Category names a group of medical lexicon terms.
type Category string

const (
	Symptoms    Category = "symptoms"
	Medications Category = "medications"
	Procedures  Category = "procedures"
	Anatomy     Category = "anatomy"
)

// Categories lists the lexicon categories in a stable order.
var Categories = [...]Category{Symptoms, Medications, Procedures, Anatomy}

// lexicon is the fixed term list per category. Order matters: hits are
// reported in definition order.
var lexicon = map[Category][]string{
	Symptoms: {
		"pain", "headache", "fever", "nausea", "fatigue", "dizziness",
		"shortness of breath", "chest pain", "abdominal pain", "back pain", "cough",
	},
	Medications: {
		"aspirin", "ibuprofen", "acetaminophen", "prescription", "medication",
		"pills", "dose", "mg", "tablet",
	},
	Procedures: {
		"x-ray", "blood test", "ultrasound", "mri", "ct scan", "examination",
		"checkup", "surgery", "procedure",
	},
	Anatomy: {
		"heart", "lungs", "stomach", "head", "chest", "abdomen", "back", "arm",
		"leg", "neck", "shoulder",
	},
}

// Terms returns a copy of the lexicon terms for c in definition order.
func Terms(c Category) []string {
	return append([]string(nil), lexicon[c]...)
}

// LexiconHits maps each category to the terms found in a transcript, in
// lexicon order. Every category is present; categories without hits map to
// an empty slice.
type LexiconHits map[Category][]string

// ScanLexicon matches transcript against the lexicon with a case-insensitive
// substring search. Matching is substring-based by contract: "pain" is also
// found inside "chest pain".
func ScanLexicon(transcript string) LexiconHits {
	text := strings.ToLower(transcript)
	hits := make(LexiconHits, len(Categories))
	for _, c := range Categories {
		found := []string{}
		for _, term := range lexicon[c] {
			if strings.Contains(text, term) {
				found = append(found, term)
			}
		}
		hits[c] = found
	}
	return hits
}
