package extract

import (
	"context"
	"testing"

	"github.com/joseph-ayodele/intake-router/constants"
	"github.com/joseph-ayodele/intake-router/internal/classify"
	"github.com/joseph-ayodele/intake-router/internal/pdftext"
	"github.com/joseph-ayodele/intake-router/internal/pdftext/pdftest"
)

// fixedReclassifier returns a constant refined intent.
type fixedReclassifier struct {
	intent constants.Intent
	calls  int
	seen   []byte
}

func (f *fixedReclassifier) Classify(_ context.Context, input []byte) classify.Result {
	f.calls++
	f.seen = input
	return classify.Result{Format: constants.Unknown, Intent: f.intent}
}

func newPDFExtractor(stub *stubCompleter, recls *fixedReclassifier) *PDF {
	email := NewEmail(stub, &fakeStore{}, nil)
	return NewPDF(pdftext.NewExtractor(nil), recls, email, nil)
}

func TestPDFExtractDelegatesToEmail(t *testing.T) {
	stub := &stubCompleter{reply: `{"sender": "", "urgency": "Normal", "summary": "regulation summary"}`}
	recls := &fixedReclassifier{intent: constants.Regulation}
	p := newPDFExtractor(stub, recls)

	raw := pdftest.BuildTextPDF("New data protection regulation text")
	out := p.Extract(context.Background(), raw, "conv-1", constants.Other)

	if out["summary"] != "regulation summary" {
		t.Fatalf("delegation lost: %v", out)
	}
	if recls.calls != 1 {
		t.Fatalf("expected 1 reclassification, got %d", recls.calls)
	}
	// The refined intent, not the outer one, reaches the email extractor.
	if out["intent"] != "Regulation" {
		t.Fatalf("refined intent lost: %v", out["intent"])
	}
}

func TestPDFExtractBadBytes(t *testing.T) {
	stub := &stubCompleter{}
	recls := &fixedReclassifier{intent: constants.Other}
	p := newPDFExtractor(stub, recls)

	out := p.Extract(context.Background(), []byte("%PDF-1.4 not a real pdf"), "conv-1", constants.Other)
	if out["error"] == nil {
		t.Fatalf("expected error payload, got %v", out)
	}
	if stub.calls != 0 {
		t.Fatalf("gateway should not run on extraction failure, got %d calls", stub.calls)
	}
}

func TestPDFExtractNoText(t *testing.T) {
	stub := &stubCompleter{}
	recls := &fixedReclassifier{intent: constants.Other}
	p := newPDFExtractor(stub, recls)

	out := p.Extract(context.Background(), pdftest.BuildEmptyTextPDF(), "conv-1", constants.Other)
	if out["error"] == nil {
		t.Fatalf("expected error payload for text-free PDF, got %v", out)
	}
	if recls.calls != 0 {
		t.Fatal("reclassifier should not run without text")
	}
}

func TestPDFReclassifyBudget(t *testing.T) {
	stub := &stubCompleter{reply: `{"urgency": "Normal"}`}
	recls := &fixedReclassifier{intent: constants.Other}
	p := newPDFExtractor(stub, recls)

	long := make([]byte, 0)
	for i := 0; i < 300; i++ {
		long = append(long, []byte("lengthy paragraph ")...)
	}
	raw := pdftest.BuildTextPDF(string(long))
	p.Extract(context.Background(), raw, "conv-1", constants.Other)

	if len(recls.seen) > pdfReclassifyBudget {
		t.Fatalf("reclassification input exceeds budget: %d", len(recls.seen))
	}
}
