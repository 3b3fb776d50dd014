package constants

import "strings"

// Format is the canonical structural shape of an input document.
type Format string

// Stable values (store these exact strings in conversation records).
const (
	PDF     Format = "PDF"
	JSON    Format = "JSON"
	Email   Format = "Email"
	Unknown Format = "Unknown"
)

var allFormats = []Format{PDF, JSON, Email, Unknown}

// Formats returns the closed format taxonomy as strings.
func Formats() []string {
	result := make([]string, len(allFormats))
	for i, f := range allFormats {
		result[i] = string(f)
	}
	return result
}

// ParseFormat maps free-form input onto the taxonomy, falling back to Unknown.
func ParseFormat(input string) Format {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, f := range allFormats {
		if normalized == strings.ToLower(string(f)) {
			return f
		}
	}
	return Unknown
}
