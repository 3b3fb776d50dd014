package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/intake-router/constants"
	"github.com/joseph-ayodele/intake-router/internal/llm"
)

// jsonPayloadBudget bounds the payload JSON sent to the model.
const jsonPayloadBudget = 3000

const jsonSystemPrompt = "You are a JSON processing expert. Extract data to match the target schema. " +
	"Current intent: %s. Flag anomalies/errors in 'anomalies' array."

// JSONPayload maps an object-shaped payload onto an intent-appropriate
// schema, surfacing structural problems as first-class anomalies rather
// than errors.
type JSONPayload struct {
	gw     llm.Completer
	store  ConversationLog
	logger *slog.Logger
}

func NewJSONPayload(gw llm.Completer, store ConversationLog, logger *slog.Logger) *JSONPayload {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONPayload{gw: gw, store: store, logger: logger}
}

func (j *JSONPayload) Extract(ctx context.Context, raw []byte, conversationID string, intent constants.Intent) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		// The orchestrator validates before dispatch; this covers direct use.
		return jsonFallback(intent, fmt.Errorf("payload is not a JSON object: %w", err))
	}

	prevContext, err := j.store.GetLastExtraction(ctx, conversationID)
	if err != nil {
		j.logger.Warn("extract.json.context_failed", "conversation_id", conversationID, "error", err)
		prevContext = map[string]any{}
	}
	contextJSON, _ := json.MarshalIndent(prevContext, "", "  ")
	payloadJSON, _ := json.MarshalIndent(payload, "", "  ")

	prompt := fmt.Sprintf(
		"Previous Context: %s\n\nTarget Schema:\n- Fields vary based on intent: %s\n\nInput JSON Payload:\n%s\n\nOutput JSON with keys: 'extracted_data' and 'anomalies'.",
		truncate(string(contextJSON), contextBudget), intent, truncate(string(payloadJSON), jsonPayloadBudget))

	var out map[string]any
	reply, err := j.gw.Complete(ctx, llm.Request{
		Prompt:   prompt,
		System:   fmt.Sprintf(jsonSystemPrompt, intent),
		WantJSON: true,
	})
	if err != nil {
		j.logger.Warn("extract.json.gateway_failed", "conversation_id", conversationID, "error", err)
		out = jsonFallback(intent, err)
	} else if decoded := llm.DecodeObject(reply); !decoded.Ok() {
		j.logger.Warn("extract.json.decode_failed", "conversation_id", conversationID, "error", decoded.Err)
		out = jsonFallback(intent, decoded.Err)
	} else if verr := validateFields(decoded.Object, llm.BuildExtractionSchema()); verr != nil {
		j.logger.Warn("extract.json.schema_failed", "conversation_id", conversationID, "error", verr)
		out = jsonFallback(intent, verr)
	} else {
		out = decoded.Object
	}

	if _, ok := out["extracted_data"]; !ok {
		out["extracted_data"] = map[string]any{}
	}
	if _, ok := out["anomalies"]; !ok {
		out["anomalies"] = []any{}
	}
	if _, ok := out["intent"]; !ok {
		out["intent"] = string(intent)
	}

	if err := j.store.Log(ctx, conversationID, map[string]any{
		"agent":        "json_extractor",
		"input_intent": string(intent),
		"output":       out,
	}); err != nil {
		j.logger.Warn("extract.json.log_failed", "conversation_id", conversationID, "error", err)
	}
	return out
}

func jsonFallback(intent constants.Intent, cause error) map[string]any {
	return map[string]any{
		"intent":         string(intent),
		"extracted_data": map[string]any{},
		"anomalies":      []any{cause.Error()},
	}
}
