package extract

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"github.com/joseph-ayodele/intake-router/constants"
	"github.com/joseph-ayodele/intake-router/internal/classify"
	"github.com/joseph-ayodele/intake-router/internal/llm"
)

// ConversationLog is what extractors need from the conversation store:
// prior extracted context in, agent activity records out.
type ConversationLog interface {
	Log(ctx context.Context, conversationID string, data map[string]any) error
	GetLastExtraction(ctx context.Context, conversationID string) (map[string]any, error)
}

// Extractor turns a raw input plus detected intent into a structured
// extraction record. Implementations never return an error: gateway and
// parse failures degrade into fallback payloads carrying an error or
// anomalies indicator.
type Extractor interface {
	Extract(ctx context.Context, raw []byte, conversationID string, intent constants.Intent) map[string]any
}

// Reclassifier re-checks intent on derived text; the PDF extractor uses it
// because the outer classification may have worked from a different
// truncation of the document.
type Reclassifier interface {
	Classify(ctx context.Context, input []byte) classify.Result
}

// contextBudget bounds the previous-context JSON included in prompts.
const contextBudget = 1000

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// validateFields checks decoded model output against a field schema.
// A violation sends the extraction down its fallback path.
func validateFields(obj map[string]any, schema map[string]any) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return llm.ValidateJSONAgainstSchema(schema, payload)
}
