package soap

// SpecialtyTemplate is a fill-in outline for clinicians. Bracketed words are
// placeholders.
type SpecialtyTemplate struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

// SpecialtyTemplates returns the outline catalog keyed by specialty. The
// returned map is a fresh copy.
func SpecialtyTemplates() map[string]SpecialtyTemplate {
	return map[string]SpecialtyTemplate{
		"general_medicine": {
			Subjective: "Patient presents with [chief complaint]. Symptoms include [symptoms]. Duration: [duration]. Associated factors: [factors].",
			Objective:  "Vital signs: [vitals]. Physical examination: [exam findings]. Relevant diagnostic results: [results].",
			Assessment: "Primary diagnosis: [diagnosis]. Differential considerations: [differentials]. Clinical reasoning: [reasoning].",
			Plan:       "Treatment plan: [treatment]. Follow-up: [follow_up]. Patient education: [education]. Monitoring: [monitoring].",
		},
		"pediatrics": {
			Subjective: "Patient (age [age]) presents with [chief complaint]. Parent/guardian reports [symptoms]. Developmental milestones: [milestones].",
			Objective:  "Growth parameters: [growth]. Vital signs: [vitals]. Physical examination: [exam]. Immunization status: [vaccines].",
			Assessment: "Primary diagnosis: [diagnosis]. Age-appropriate considerations: [considerations].",
			Plan:       "Treatment: [treatment]. Parental education: [education]. Follow-up: [follow_up]. Safety counseling: [safety].",
		},
		"emergency": {
			Subjective: "Chief complaint: [complaint]. Onset: [onset]. Severity: [severity]. Associated symptoms: [symptoms].",
			Objective:  "Triage vitals: [vitals]. Emergency assessment: [assessment]. Diagnostic studies: [studies].",
			Assessment: "Working diagnosis: [diagnosis]. Acuity level: [acuity]. Risk stratification: [risk].",
			Plan:       "Immediate interventions: [interventions]. Disposition: [disposition]. Follow-up instructions: [instructions].",
		},
	}
}
