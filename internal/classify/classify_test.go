package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/joseph-ayodele/intake-router/constants"
	"github.com/joseph-ayodele/intake-router/internal/llm"
	"github.com/joseph-ayodele/intake-router/internal/pdftext"
	"github.com/joseph-ayodele/intake-router/internal/pdftext/pdftest"
)

// stubCompleter returns a canned reply and records the last request.
type stubCompleter struct {
	reply      string
	err        error
	calls      int
	lastPrompt string
}

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	s.calls++
	s.lastPrompt = req.Prompt
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newClassifier(stub *stubCompleter) *Classifier {
	return New(stub, pdftext.NewExtractor(nil), nil)
}

func TestClassifyPDFSignature(t *testing.T) {
	stub := &stubCompleter{reply: `{"intent": "Regulation"}`}
	c := newClassifier(stub)

	res := c.Classify(context.Background(), pdftest.BuildTextPDF("New compliance regulation effective immediately"))
	if res.Format != constants.PDF {
		t.Fatalf("format = %v, want PDF", res.Format)
	}
	if res.Intent != constants.Regulation {
		t.Fatalf("intent = %v, want Regulation", res.Intent)
	}
}

func TestClassifyPDFEmptyTextShortCircuit(t *testing.T) {
	stub := &stubCompleter{reply: `{"intent": "Invoice"}`}
	c := newClassifier(stub)

	res := c.Classify(context.Background(), pdftest.BuildEmptyTextPDF())
	if res.Format != constants.PDF {
		t.Fatalf("format = %v, want PDF", res.Format)
	}
	if res.Intent != constants.Other {
		t.Fatalf("intent = %v, want Other", res.Intent)
	}
	if stub.calls != 0 {
		t.Fatalf("gateway invoked %d times for an empty PDF", stub.calls)
	}
}

func TestClassifyPDFGarbledBytesShortCircuit(t *testing.T) {
	stub := &stubCompleter{reply: `{"intent": "Invoice"}`}
	c := newClassifier(stub)

	// PDF signature but unreadable document.
	res := c.Classify(context.Background(), []byte("%PDF-1.4 garbage"))
	if res.Format != constants.PDF || res.Intent != constants.Other {
		t.Fatalf("got %+v, want {PDF Other}", res)
	}
	if stub.calls != 0 {
		t.Fatalf("gateway invoked %d times", stub.calls)
	}
}

func TestClassifyFormats(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  constants.Format
	}{
		{"json object", `{"invoice_id": "INV-1", "amount": 100}`, constants.JSON},
		{"json array", `[1, 2, 3]`, constants.Unknown},
		{"json scalar", `42`, constants.Unknown},
		{"json string", `"hello"`, constants.Unknown},
		{"email from header", "From: a@b.c\nhello", constants.Email},
		{"email subject", "Subject: order status", constants.Email},
		{"email salutation", "Dear team, please advise.", constants.Email},
		{"email signoff", "thanks and Regards, Bob", constants.Email},
		{"plain text", "just some words here", constants.Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubCompleter{reply: `{"intent": "Other"}`}
			res := newClassifier(stub).Classify(context.Background(), []byte(tc.input))
			if res.Format != tc.want {
				t.Fatalf("format = %v, want %v", res.Format, tc.want)
			}
		})
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	stub := &stubCompleter{reply: `{"intent": "Invoice"}`}
	c := newClassifier(stub)

	res := c.Classify(context.Background(), []byte("   \n\t "))
	if res.Format != constants.Unknown {
		t.Fatalf("format = %v, want Unknown", res.Format)
	}
	if res.Intent != constants.Other {
		t.Fatalf("intent = %v, want Other", res.Intent)
	}
	if stub.calls != 0 {
		t.Fatalf("gateway invoked %d times for blank input", stub.calls)
	}
}

func TestClassifyIntentDegradesToOther(t *testing.T) {
	cases := []struct {
		name string
		stub *stubCompleter
	}{
		{"gateway failure", &stubCompleter{err: errors.New("boom")}},
		{"malformed response", &stubCompleter{reply: "the intent is Invoice"}},
		{"out-of-taxonomy label", &stubCompleter{reply: `{"intent": "Poem"}`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := newClassifier(tc.stub).Classify(context.Background(), []byte("Dear team, invoice attached"))
			if res.Format != constants.Email {
				t.Fatalf("format = %v, want Email", res.Format)
			}
			if res.Intent != constants.Other {
				t.Fatalf("intent = %v, want Other", res.Intent)
			}
		})
	}
}

func TestClassifyIntentRejectsExtraKeys(t *testing.T) {
	// A valid label inside an off-contract response is not trusted.
	stub := &stubCompleter{reply: `{"intent": "Invoice", "confidence": 0.9}`}
	res := newClassifier(stub).Classify(context.Background(), []byte("Dear team, invoice attached"))
	if res.Intent != constants.Other {
		t.Fatalf("intent = %v, want Other for off-contract response", res.Intent)
	}
}

func TestClassifyTruncationKeepsValidUTF8(t *testing.T) {
	stub := &stubCompleter{reply: `{"intent": "Other"}`}
	c := newClassifier(stub)

	// Multi-byte runes sized so the byte budget lands mid-rune.
	input := "Dear team, " + strings.Repeat("é", 1500)
	c.Classify(context.Background(), []byte(input))

	if stub.calls == 0 {
		t.Fatal("gateway not invoked")
	}
	if !utf8.ValidString(stub.lastPrompt) {
		t.Fatal("prompt contains a split rune")
	}
}

func TestClassifyIntentFromGateway(t *testing.T) {
	for _, intent := range constants.Intents() {
		stub := &stubCompleter{reply: `{"intent": "` + intent + `"}`}
		res := newClassifier(stub).Classify(context.Background(), []byte("Dear team"))
		if string(res.Intent) != intent {
			t.Fatalf("intent = %v, want %v", res.Intent, intent)
		}
	}
}

func TestClassifyBinaryNonPDF(t *testing.T) {
	stub := &stubCompleter{reply: `{"intent": "Other"}`}
	res := newClassifier(stub).Classify(context.Background(), []byte{0xff, 0xfe, 0x01, 0x02})
	if res.Format != constants.Unknown {
		t.Fatalf("format = %v, want Unknown", res.Format)
	}
}
