package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/intake-router/constants"
	"github.com/joseph-ayodele/intake-router/internal/llm"
)

// emailContentBudget bounds the email text sent to the model.
const emailContentBudget = 5000

const emailSystemPrompt = "You are an email processing expert. Extract key information. " +
	"Current intent: %s. Output JSON with: sender, intent, urgency, topics, summary."

var whitespaceRun = regexp.MustCompile(`\s+`)

// urgencyKeywords force urgency High when the model's own signal is missing
// or noisy. Matched case-insensitively against the normalized text.
var urgencyKeywords = []string{
	"urgent", "immediate", "asap", "as soon as possible", "priority", "important", "critical",
}

// noUrgencyValues are model outputs treated as "no urgency reported".
var noUrgencyValues = map[string]struct{}{
	"": {}, "none": {}, "no": {}, "n/a": {}, "unknown": {},
}

// Email extracts structured fields from email or free text content.
type Email struct {
	gw     llm.Completer
	store  ConversationLog
	logger *slog.Logger
}

func NewEmail(gw llm.Completer, store ConversationLog, logger *slog.Logger) *Email {
	if logger == nil {
		logger = slog.Default()
	}
	return &Email{gw: gw, store: store, logger: logger}
}

func (e *Email) Extract(ctx context.Context, raw []byte, conversationID string, intent constants.Intent) map[string]any {
	content := truncate(whitespaceRun.ReplaceAllString(string(raw), " "), emailContentBudget)

	prevContext, err := e.store.GetLastExtraction(ctx, conversationID)
	if err != nil {
		e.logger.Warn("extract.email.context_failed", "conversation_id", conversationID, "error", err)
		prevContext = map[string]any{}
	}
	contextJSON, _ := json.MarshalIndent(prevContext, "", "  ")

	prompt := fmt.Sprintf(
		"Previous Context: %s\n\nEmail Content:\n%s\n\nOutput JSON with keys: sender, intent, urgency, topics, summary.",
		truncate(string(contextJSON), contextBudget), content)

	var out map[string]any
	reply, err := e.gw.Complete(ctx, llm.Request{
		Prompt:   prompt,
		System:   fmt.Sprintf(emailSystemPrompt, intent),
		WantJSON: true,
	})
	if err != nil {
		e.logger.Warn("extract.email.gateway_failed", "conversation_id", conversationID, "error", err)
		out = emailFallback(intent, err)
	} else if decoded := llm.DecodeObject(reply); !decoded.Ok() {
		e.logger.Warn("extract.email.decode_failed", "conversation_id", conversationID, "error", decoded.Err)
		out = emailFallback(intent, decoded.Err)
	} else if verr := validateFields(decoded.Object, llm.BuildEmailFieldsSchema()); verr != nil {
		e.logger.Warn("extract.email.schema_failed", "conversation_id", conversationID, "error", verr)
		out = emailFallback(intent, verr)
	} else {
		out = decoded.Object
	}

	// Urgency is never silently missing, even under model noise.
	out["urgency"] = resolveUrgency(out["urgency"], content)
	if _, ok := out["intent"]; !ok {
		out["intent"] = string(intent)
	}

	if err := e.store.Log(ctx, conversationID, map[string]any{
		"agent":        "email_extractor",
		"input_intent": string(intent),
		"output":       out,
	}); err != nil {
		e.logger.Warn("extract.email.log_failed", "conversation_id", conversationID, "error", err)
	}
	return out
}

func emailFallback(intent constants.Intent, cause error) map[string]any {
	return map[string]any{
		"sender":  "",
		"intent":  string(intent),
		"topics":  []any{},
		"summary": "",
		"error":   cause.Error(),
	}
}

// resolveUrgency keeps a meaningful model-reported urgency and otherwise
// derives one deterministically from the normalized text: any urgency
// keyword forces High, none forces Normal.
func resolveUrgency(reported any, content string) any {
	if s, ok := reported.(string); ok {
		if _, absent := noUrgencyValues[strings.ToLower(strings.TrimSpace(s))]; !absent {
			return reported
		}
	}
	lower := strings.ToLower(content)
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			return "High"
		}
	}
	return "Normal"
}
