package constants

import "strings"

// Intent is the business purpose assigned to an input by classification.
type Intent string

const (
	Invoice    Intent = "Invoice"
	RFQ        Intent = "RFQ"
	Complaint  Intent = "Complaint"
	Regulation Intent = "Regulation"
	Other      Intent = "Other"
)

var allIntents = []Intent{Invoice, RFQ, Complaint, Regulation, Other}

// Intents returns the closed intent taxonomy as strings, for prompt
// construction and schema enums.
func Intents() []string {
	result := make([]string, len(allIntents))
	for i, in := range allIntents {
		result[i] = string(in)
	}
	return result
}

// ParseIntent maps free-form model output onto the taxonomy, falling back
// to Other. Matching is case-insensitive; "rfq" and "RFQ" are the same label.
func ParseIntent(input string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, in := range allIntents {
		if normalized == strings.ToLower(string(in)) {
			return in
		}
	}
	return Other
}
