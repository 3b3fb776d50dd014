package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/joseph-ayodele/intake-router/constants"
)

func TestJSONExtractHappyPath(t *testing.T) {
	stub := &stubCompleter{reply: `{"extracted_data": {"invoice_id": "INV-1", "amount": 100}, "anomalies": []}`}
	store := &fakeStore{}
	j := NewJSONPayload(stub, store, nil)

	out := j.Extract(context.Background(), []byte(`{"invoice_id": "INV-1", "amount": 100}`), "conv-1", constants.Invoice)
	data, ok := out["extracted_data"].(map[string]any)
	if !ok || data["invoice_id"] != "INV-1" {
		t.Fatalf("extracted_data lost: %v", out)
	}
	if anomalies, ok := out["anomalies"].([]any); !ok || len(anomalies) != 0 {
		t.Fatalf("anomalies should be an empty list: %v", out["anomalies"])
	}
	if out["intent"] != "Invoice" {
		t.Fatalf("intent echo lost: %v", out)
	}
	if len(store.logged) != 1 || store.logged[0]["agent"] != "json_extractor" {
		t.Fatalf("agent activity record missing: %v", store.logged)
	}
}

func TestJSONGatewayFailureYieldsAnomalies(t *testing.T) {
	stub := &stubCompleter{err: errors.New("rate limited")}
	j := NewJSONPayload(stub, &fakeStore{}, nil)

	out := j.Extract(context.Background(), []byte(`{"a": 1}`), "conv-1", constants.RFQ)
	data, ok := out["extracted_data"].(map[string]any)
	if !ok || len(data) != 0 {
		t.Fatalf("expected empty extracted_data, got %v", out["extracted_data"])
	}
	anomalies, ok := out["anomalies"].([]any)
	if !ok || len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %v", out["anomalies"])
	}
	if !strings.Contains(anomalies[0].(string), "rate limited") {
		t.Fatalf("anomaly should carry the cause: %v", anomalies[0])
	}
}

func TestJSONMalformedModelOutputYieldsAnomalies(t *testing.T) {
	stub := &stubCompleter{reply: "here is your data: 42"}
	j := NewJSONPayload(stub, &fakeStore{}, nil)

	out := j.Extract(context.Background(), []byte(`{"a": 1}`), "conv-1", constants.Other)
	if anomalies, ok := out["anomalies"].([]any); !ok || len(anomalies) != 1 {
		t.Fatalf("expected anomalies fallback, got %v", out)
	}
}

func TestJSONMissingKeysBackfilled(t *testing.T) {
	stub := &stubCompleter{reply: `{"extracted_data": {"x": 1}}`}
	j := NewJSONPayload(stub, &fakeStore{}, nil)

	out := j.Extract(context.Background(), []byte(`{"x": 1}`), "conv-1", constants.Other)
	if _, ok := out["anomalies"]; !ok {
		t.Fatal("anomalies key not backfilled")
	}
}

func TestJSONSchemaViolationYieldsAnomalies(t *testing.T) {
	// extracted_data must be an object; an array-shaped one is off contract.
	stub := &stubCompleter{reply: `{"extracted_data": [1, 2], "anomalies": []}`}
	j := NewJSONPayload(stub, &fakeStore{}, nil)

	out := j.Extract(context.Background(), []byte(`{"a": 1}`), "conv-1", constants.Invoice)
	data, ok := out["extracted_data"].(map[string]any)
	if !ok || len(data) != 0 {
		t.Fatalf("off-contract response trusted: %v", out["extracted_data"])
	}
	anomalies, ok := out["anomalies"].([]any)
	if !ok || len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %v", out["anomalies"])
	}
	if !strings.Contains(anomalies[0].(string), "schema") {
		t.Fatalf("anomaly should carry the schema violation: %v", anomalies[0])
	}
}

func TestJSONNonObjectPayload(t *testing.T) {
	stub := &stubCompleter{reply: `{}`}
	j := NewJSONPayload(stub, &fakeStore{}, nil)

	out := j.Extract(context.Background(), []byte(`[1, 2]`), "conv-1", constants.Other)
	if anomalies, ok := out["anomalies"].([]any); !ok || len(anomalies) != 1 {
		t.Fatalf("expected anomalies for non-object payload, got %v", out)
	}
	if stub.calls != 0 {
		t.Fatalf("gateway should not be called for invalid payloads, got %d calls", stub.calls)
	}
}

func TestJSONPayloadBudget(t *testing.T) {
	stub := &stubCompleter{reply: `{"extracted_data": {}, "anomalies": []}`}
	j := NewJSONPayload(stub, &fakeStore{}, nil)

	big := `{"blob": "` + strings.Repeat("y", 5000) + `"}`
	j.Extract(context.Background(), []byte(big), "conv-1", constants.Other)
	if len(stub.prompts[0]) > contextBudget+jsonPayloadBudget+400 {
		t.Fatalf("prompt exceeds budgets: %d chars", len(stub.prompts[0]))
	}
}
