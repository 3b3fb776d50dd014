package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/intake-router/constants"
	"github.com/joseph-ayodele/intake-router/internal/classify"
	"github.com/joseph-ayodele/intake-router/internal/extract"
	"github.com/joseph-ayodele/intake-router/internal/memory"
	"github.com/joseph-ayodele/intake-router/internal/pdftext"
)

// minPDFBytes rejects PDFs too short to hold any document structure.
const minPDFBytes = 10

// Envelope is the sole contract exposed to callers. On unrecoverable
// failure only Error is populated.
type Envelope struct {
	ConversationID string           `json:"conversation_id,omitempty"`
	Classification *classify.Result `json:"classification,omitempty"`
	Result         map[string]any   `json:"result,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Classifier is the classification dependency of the processor.
type Classifier interface {
	Classify(ctx context.Context, input []byte) classify.Result
}

// Store is the conversation store surface the processor needs.
type Store interface {
	extract.ConversationLog
	ClearConversation(ctx context.Context, conversationID string) error
	History(ctx context.Context, conversationID string) ([]memory.Record, error)
}

// Processor is the top-level entry point: it validates input, dispatches to
// the matching extractor by format, and persists a consolidated record.
type Processor struct {
	classifier Classifier
	store      Store
	pdf        *pdftext.Extractor
	extractors map[constants.Format]extract.Extractor
	logger     *slog.Logger
}

func New(classifier Classifier, store Store, pdf *pdftext.Extractor, email, jsonPayload, pdfExtractor extract.Extractor, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		classifier: classifier,
		store:      store,
		pdf:        pdf,
		extractors: map[constants.Format]extract.Extractor{
			constants.Email:   email,
			constants.Unknown: email, // text fallback path
			constants.JSON:    jsonPayload,
			constants.PDF:     pdfExtractor,
		},
		logger: logger,
	}
}

// Process runs the classify, validate, dispatch, log flow for one input.
// It never panics or returns an error to the caller: unexpected failures
// surface as an error-only envelope.
func (p *Processor) Process(ctx context.Context, input []byte, conversationID string, clearMemory bool) (env Envelope) {
	start := time.Now()
	if conversationID == "" {
		conversationID = newConversationID()
	}
	env = Envelope{ConversationID: conversationID}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("orchestrator.panic", "conversation_id", conversationID, "panic", r)
			env = Envelope{Error: fmt.Sprintf("processing failed: %v", r)}
		}
	}()

	if clearMemory {
		if err := p.store.ClearConversation(ctx, conversationID); err != nil {
			p.logger.Error("orchestrator.clear_failed", "conversation_id", conversationID, "error", err)
			return Envelope{Error: err.Error()}
		}
	}

	classification := p.classifier.Classify(ctx, input)
	env.Classification = &classification

	p.logger.Info("orchestrator.classified",
		"conversation_id", conversationID,
		"format", string(classification.Format),
		"intent", string(classification.Intent),
		"bytes", len(input),
	)

	if msg, ok := p.validate(classification.Format, input); !ok {
		p.logger.Warn("orchestrator.rejected",
			"conversation_id", conversationID,
			"format", string(classification.Format),
			"reason", msg,
		)
		env.Result = map[string]any{"error": msg}
		return env
	}

	extractor, ok := p.extractors[classification.Format]
	if !ok {
		extractor = p.extractors[constants.Email]
	}
	result := extractor.Extract(ctx, input, conversationID, classification.Intent)

	if err := p.store.Log(ctx, conversationID, map[string]any{
		"source":           "user_input",
		"type":             string(classification.Format),
		"intent":           string(classification.Intent),
		"extracted_values": result,
	}); err != nil {
		p.logger.Error("orchestrator.log_failed", "conversation_id", conversationID, "error", err)
		return Envelope{Error: err.Error()}
	}

	env.Result = result
	p.logger.Info("orchestrator.process.ok",
		"conversation_id", conversationID,
		"format", string(classification.Format),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return env
}

// validate runs format-specific pre-flight checks before any extractor or
// gateway work. Rejections are user-facing messages, not errors.
func (p *Processor) validate(format constants.Format, input []byte) (string, bool) {
	switch format {
	case constants.PDF:
		if len(input) < minPDFBytes || p.pdfIsEmpty(input) {
			return "Please provide a valid PDF file.", false
		}
	case constants.JSON:
		var payload map[string]any
		if err := json.Unmarshal(input, &payload); err != nil || len(payload) == 0 {
			return "Please provide a valid file.", false
		}
	default: // Email / Unknown
		content := string(input)
		if !utf8.Valid(input) {
			content = strconv.Quote(string(input))
		}
		if strings.TrimSpace(content) == "" {
			return "Please provide a valid file.", false
		}
	}
	return "", true
}

// pdfIsEmpty extracts the whole document and reports whether it carries any
// non-whitespace text. Extraction failure counts as empty.
func (p *Processor) pdfIsEmpty(input []byte) bool {
	text, _, err := p.pdf.Text(input, 0)
	if err != nil {
		return true
	}
	return strings.TrimSpace(text) == ""
}

// History exposes the conversation log for inspection tooling.
func (p *Processor) History(ctx context.Context, conversationID string) ([]memory.Record, error) {
	return p.store.History(ctx, conversationID)
}

// ClearConversation purges a conversation's history.
func (p *Processor) ClearConversation(ctx context.Context, conversationID string) error {
	return p.store.ClearConversation(ctx, conversationID)
}

// newConversationID derives a short time-seeded token. Collisions are
// tolerated as extremely unlikely, not prevented.
func newConversationID() string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(time.Now().UnixNano(), 10)))
	return hex.EncodeToString(sum[:])[:12]
}
