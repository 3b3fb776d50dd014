package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decoded is the outcome of decoding untrusted model output: either a parsed
// object or a fallback reason. Every extractor consumes this uniformly
// instead of scattering its own parse-and-recover logic.
type Decoded struct {
	Object map[string]any
	Err    error
}

// Ok reports whether decoding produced an object.
func (d Decoded) Ok() bool {
	return d.Err == nil
}

// DecodeObject parses model output as a single JSON object. Markdown code
// fences are stripped first; models wrap JSON in ```json blocks even when
// asked not to. Arrays, scalars, and malformed text all yield a fallback.
func DecodeObject(raw string) Decoded {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return Decoded{Err: fmt.Errorf("empty model output")}
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(cleaned), &m); err != nil {
		return Decoded{Err: fmt.Errorf("model output is not a JSON object: %w", err)}
	}
	return Decoded{Object: m}
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// drop the language tag line ("json", "JSON", or empty)
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
