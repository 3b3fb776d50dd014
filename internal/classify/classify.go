package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/intake-router/constants"
	"github.com/joseph-ayodele/intake-router/internal/llm"
	"github.com/joseph-ayodele/intake-router/internal/pdftext"
)

// Result is a fully-populated classification. Intent falls back to Other and
// format to a safe default whenever detection is inconclusive.
type Result struct {
	Format constants.Format `json:"format"`
	Intent constants.Intent `json:"intent"`
}

// intentCharBudget bounds the content prefix sent for intent inference.
const intentCharBudget = 2000

const intentSystemPrompt = "Identify the intent of this input. " +
	"Possible intents: Invoice, RFQ, Complaint, Regulation, Other. " +
	"Return output strictly as JSON with a single key 'intent'."

// Classifier determines {format, intent} for an arbitrary input. Format
// detection is structural; intent goes through the completion gateway.
type Classifier struct {
	gw     llm.Completer
	pdf    *pdftext.Extractor
	logger *slog.Logger
}

func New(gw llm.Completer, pdf *pdftext.Extractor, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gw: gw, pdf: pdf, logger: logger}
}

// Classify never fails: any gateway or parse problem degrades to intent
// Other. Emptiness rejection is the orchestrator's job, not ours — blank
// input still gets a full {Unknown, Other} classification.
func (c *Classifier) Classify(ctx context.Context, input []byte) Result {
	if pdftext.HasPDFSignature(input) {
		text, _, err := c.pdf.Text(input, intentCharBudget)
		if err != nil || strings.TrimSpace(text) == "" {
			// Scanned or garbled PDF: don't waste a completion call.
			c.logger.Warn("classify.pdf_no_text", "error", err)
			return Result{Format: constants.PDF, Intent: constants.Other}
		}
		prompt := fmt.Sprintf("PDF Text (truncated):\n%s\n\nAnalysis:", text)
		return Result{Format: constants.PDF, Intent: c.intent(ctx, prompt)}
	}

	content := strings.TrimSpace(decodeText(input))

	var format constants.Format
	switch {
	case isJSONObject(content):
		format = constants.JSON
	case hasEmailMarker(content):
		format = constants.Email
	default:
		format = constants.Unknown
	}

	if content == "" {
		return Result{Format: format, Intent: constants.Other}
	}

	truncated := content
	if len(truncated) > intentCharBudget {
		cut := intentCharBudget
		for cut > 0 && !utf8.RuneStart(truncated[cut]) {
			cut--
		}
		truncated = truncated[:cut]
	}
	prompt := fmt.Sprintf("Input:\n%s\n\nAnalysis:", truncated)
	return Result{Format: format, Intent: c.intent(ctx, prompt)}
}

// intent asks the gateway for a taxonomy label and validates the response
// before trusting it. Any failure defaults to Other.
func (c *Classifier) intent(ctx context.Context, prompt string) constants.Intent {
	raw, err := c.gw.Complete(ctx, llm.Request{
		Prompt:   prompt,
		System:   intentSystemPrompt,
		WantJSON: true,
	})
	if err != nil {
		c.logger.Warn("classify.intent.gateway_failed", "error", err)
		return constants.Other
	}

	decoded := llm.DecodeObject(raw)
	if !decoded.Ok() {
		c.logger.Warn("classify.intent.decode_failed", "error", decoded.Err)
		return constants.Other
	}
	// The contract is a single-key enum object; anything off contract is
	// not trusted, even when an intent-looking label is present.
	payload, _ := json.Marshal(decoded.Object)
	if err := llm.ValidateJSONAgainstSchema(llm.BuildIntentSchema(constants.Intents()), payload); err != nil {
		c.logger.Warn("classify.intent.schema_failed", "error", err)
		return constants.Other
	}
	label, _ := decoded.Object["intent"].(string)
	return constants.ParseIntent(label)
}

// decodeText renders input bytes as text, falling back to a quoted literal
// representation when the bytes are not valid UTF-8.
func decodeText(input []byte) string {
	if utf8.Valid(input) {
		return string(input)
	}
	return fmt.Sprintf("%q", input)
}

// isJSONObject reports whether the text is a strictly object-shaped JSON
// document. Arrays and scalars are valid JSON but not JSON-format inputs.
func isJSONObject(content string) bool {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return false
	}
	_, ok := v.(map[string]any)
	return ok
}

var emailMarkers = []string{"From:", "Subject:", "To:", "Dear", "Regards"}

func hasEmailMarker(content string) bool {
	for _, marker := range emailMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}
