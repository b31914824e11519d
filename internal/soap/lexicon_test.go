package soap

import (
	"slices"
	"testing"
)

func TestScanLexicon(t *testing.T) {
	t.Parallel()

	hits := ScanLexicon("Patient had NAUSEA and a Fever, then fever again. Took Ibuprofen 200 mg for chest pain.")

	tests := []struct {
		cat  Category
		want []string
	}{
		// "pain" matches inside "chest pain"; order follows the lexicon, not the text.
		{Symptoms, []string{"pain", "fever", "nausea", "chest pain"}},
		{Medications, []string{"ibuprofen", "mg"}},
		{Procedures, []string{}},
		{Anatomy, []string{"chest"}},
	}
	for _, tt := range tests {
		got, ok := hits[tt.cat]
		if !ok {
			t.Errorf("category %s missing", tt.cat)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s = %v, want %v", tt.cat, got, tt.want)
		}
	}
}

func TestScanLexicon_EmptyTranscript(t *testing.T) {
	t.Parallel()

	hits := ScanLexicon("")
	if len(hits) != len(Categories) {
		t.Fatalf("categories = %d, want %d", len(hits), len(Categories))
	}
	for c, terms := range hits {
		if terms == nil || len(terms) != 0 {
			t.Errorf("%s = %#v, want empty non-nil slice", c, terms)
		}
	}
}

func TestTerms_ReturnsCopy(t *testing.T) {
	t.Parallel()

	terms := Terms(Symptoms)
	terms[0] = "mutated"
	if Terms(Symptoms)[0] != "pain" {
		t.Error("Terms exposed the lexicon backing array")
	}
}

func TestBuildContext_Placeholders(t *testing.T) {
	t.Parallel()

	zero := 0
	c := BuildContext("some transcript", PatientContext{Age: &zero, Gender: "  "})
	if c.AgeKnown() || c.Age() != UnknownAge {
		t.Errorf("Age = %q, want %q", c.Age(), UnknownAge)
	}
	if c.Gender() != UnspecifiedGender {
		t.Errorf("Gender = %q", c.Gender())
	}
	if got := c.Complaint(UnspecifiedTemplate); got != "chief complaint not specified" {
		t.Errorf("Complaint = %q", got)
	}

	age := 52
	c = BuildContext("x", PatientContext{Age: &age, Gender: "female", ChiefComplaint: " cough "})
	age = 10
	if c.Age() != "52" {
		t.Errorf("Age = %q, want 52 (context must not alias caller memory)", c.Age())
	}
	if c.Complaint(UnspecifiedPrompt) != "cough" {
		t.Errorf("Complaint = %q", c.Complaint(UnspecifiedPrompt))
	}
}
