package analysis

import "errors"

// Request is one piece of free text to analyze, plus optional routing
// context. Only the allow-listed context fields (stage, patient_type,
// urgency, intent_category) influence caching; anything else is passed
// through untouched.
type Request struct {
	Text    string            `json:"text"`
	Context map[string]string `json:"context,omitempty"`
}

func (r *Request) Validate() error {
	if r.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

// Result is the structured outcome of analyzing one request.
type Result struct {
	Intent   string   `json:"intent"`
	Urgency  string   `json:"urgency,omitempty"`
	Entities []string `json:"entities,omitempty"`
	Summary  string   `json:"summary,omitempty"`
}
