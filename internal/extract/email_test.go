package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/joseph-ayodele/intake-router/constants"
	"github.com/joseph-ayodele/intake-router/internal/llm"
)

// stubCompleter returns a canned reply (or error) and records prompts.
type stubCompleter struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, req.Prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

// fakeStore is an in-memory ConversationLog.
type fakeStore struct {
	logged []map[string]any
	last   map[string]any
	logErr error
}

func (f *fakeStore) Log(_ context.Context, _ string, data map[string]any) error {
	if f.logErr != nil {
		return f.logErr
	}
	f.logged = append(f.logged, data)
	return nil
}

func (f *fakeStore) GetLastExtraction(_ context.Context, _ string) (map[string]any, error) {
	if f.last == nil {
		return map[string]any{}, nil
	}
	return f.last, nil
}

func TestEmailExtractHappyPath(t *testing.T) {
	stub := &stubCompleter{reply: `{"sender": "customer@example.com", "intent": "Complaint", "urgency": "High", "topics": ["screen"], "summary": "defective laptop"}`}
	store := &fakeStore{}
	e := NewEmail(stub, store, nil)

	out := e.Extract(context.Background(), []byte("From: customer@example.com\nThe screen flickers."), "conv-1", constants.Complaint)
	if out["sender"] != "customer@example.com" {
		t.Fatalf("sender lost: %v", out)
	}
	if out["urgency"] != "High" {
		t.Fatalf("model urgency overridden: %v", out["urgency"])
	}
	if len(store.logged) != 1 {
		t.Fatalf("expected 1 agent activity record, got %d", len(store.logged))
	}
	if store.logged[0]["agent"] != "email_extractor" {
		t.Fatalf("unexpected activity record: %v", store.logged[0])
	}
}

func TestEmailUrgencyFallbackHigh(t *testing.T) {
	// Malformed model output + "asap" in the text forces High.
	stub := &stubCompleter{reply: "not json at all"}
	e := NewEmail(stub, &fakeStore{}, nil)

	out := e.Extract(context.Background(), []byte("Please fix this asap."), "conv-1", constants.Complaint)
	if out["urgency"] != "High" {
		t.Fatalf("urgency = %v, want High", out["urgency"])
	}
	if out["error"] == nil {
		t.Fatal("fallback payload should carry the decode error")
	}
}

func TestEmailUrgencyFallbackNormal(t *testing.T) {
	// Clean text, model omits urgency entirely.
	stub := &stubCompleter{reply: `{"sender": "a@b.c", "summary": "routine note"}`}
	e := NewEmail(stub, &fakeStore{}, nil)

	out := e.Extract(context.Background(), []byte("Just a routine update, no rush."), "conv-1", constants.Other)
	if out["urgency"] != "Normal" {
		t.Fatalf("urgency = %v, want Normal", out["urgency"])
	}
}

func TestEmailUrgencyNoUrgencyValues(t *testing.T) {
	for _, v := range []string{"", "none", "N/A", "Unknown", "no"} {
		stub := &stubCompleter{reply: `{"urgency": "` + v + `"}`}
		e := NewEmail(stub, &fakeStore{}, nil)

		out := e.Extract(context.Background(), []byte("This is URGENT, respond immediately."), "conv-1", constants.Other)
		if out["urgency"] != "High" {
			t.Fatalf("urgency = %v for model value %q, want High", out["urgency"], v)
		}
	}
}

func TestEmailSchemaViolationFallback(t *testing.T) {
	// Decodable JSON with a mistyped field goes down the fallback path.
	stub := &stubCompleter{reply: `{"sender": "a@b.c", "topics": "screen flicker", "summary": "note"}`}
	e := NewEmail(stub, &fakeStore{}, nil)

	out := e.Extract(context.Background(), []byte("The screen flickers."), "conv-1", constants.Complaint)
	if out["sender"] != "" {
		t.Fatalf("off-contract response trusted: %v", out)
	}
	if out["intent"] != "Complaint" {
		t.Fatalf("intent echo lost: %v", out)
	}
	errMsg, _ := out["error"].(string)
	if !strings.Contains(errMsg, "schema") {
		t.Fatalf("error = %q, want schema violation", errMsg)
	}
	if out["urgency"] != "Normal" {
		t.Fatalf("urgency = %v, want Normal", out["urgency"])
	}
}

func TestEmailGatewayFailureFallback(t *testing.T) {
	stub := &stubCompleter{err: errors.New("gateway down")}
	e := NewEmail(stub, &fakeStore{}, nil)

	out := e.Extract(context.Background(), []byte("Dear team, critical outage ongoing."), "conv-1", constants.Complaint)
	if out["intent"] != "Complaint" {
		t.Fatalf("intent echo lost: %v", out)
	}
	if out["urgency"] != "High" {
		t.Fatalf("urgency = %v, want High (keyword 'critical')", out["urgency"])
	}
	if !strings.Contains(out["error"].(string), "gateway down") {
		t.Fatalf("error indicator lost: %v", out)
	}
}

func TestEmailWhitespaceNormalizationAndBudget(t *testing.T) {
	stub := &stubCompleter{reply: `{"urgency": "Normal"}`}
	e := NewEmail(stub, &fakeStore{}, nil)

	input := "Dear   team,\n\n\t please \t review " + strings.Repeat("x ", 4000)
	e.Extract(context.Background(), []byte(input), "conv-1", constants.Other)

	prompt := stub.prompts[0]
	if strings.Contains(prompt, "Dear   team") {
		t.Error("whitespace runs not collapsed")
	}
	if !strings.Contains(prompt, "Dear team, please review") {
		t.Errorf("normalized content missing from prompt")
	}
	if len(prompt) > contextBudget+emailContentBudget+300 {
		t.Errorf("prompt exceeds budgets: %d chars", len(prompt))
	}
}

func TestEmailPreviousContextInPrompt(t *testing.T) {
	stub := &stubCompleter{reply: `{"urgency": "Normal"}`}
	store := &fakeStore{last: map[string]any{"summary": "earlier complaint about order 45321"}}
	e := NewEmail(stub, store, nil)

	e.Extract(context.Background(), []byte("Following up on my earlier message."), "conv-1", constants.Complaint)
	if !strings.Contains(stub.prompts[0], "earlier complaint about order 45321") {
		t.Fatal("previous extraction context not included in prompt")
	}
}

func TestEmailLogFailureDoesNotFailExtraction(t *testing.T) {
	stub := &stubCompleter{reply: `{"urgency": "Normal", "summary": "ok"}`}
	store := &fakeStore{logErr: errors.New("disk full")}
	e := NewEmail(stub, store, nil)

	out := e.Extract(context.Background(), []byte("hello there"), "conv-1", constants.Other)
	if out["summary"] != "ok" {
		t.Fatalf("extraction lost on log failure: %v", out)
	}
}
