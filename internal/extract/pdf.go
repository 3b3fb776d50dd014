package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/intake-router/constants"
	"github.com/joseph-ayodele/intake-router/internal/pdftext"
)

// pdfTextBudget caps full-document extraction; pages past the cap are
// not visited.
const pdfTextBudget = 10000

// pdfReclassifyBudget bounds the text prefix used for the intent re-check.
const pdfReclassifyBudget = 2000

// PDF extracts document text, re-checks its intent on the extracted text
// (the outer classification may have used a different truncation), then
// delegates field extraction to the email/text extractor.
type PDF struct {
	pdf        *pdftext.Extractor
	classifier Reclassifier
	email      *Email
	logger     *slog.Logger
}

func NewPDF(pdf *pdftext.Extractor, classifier Reclassifier, email *Email, logger *slog.Logger) *PDF {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDF{pdf: pdf, classifier: classifier, email: email, logger: logger}
}

func (p *PDF) Extract(ctx context.Context, raw []byte, conversationID string, intent constants.Intent) map[string]any {
	text, pages, err := p.pdf.Text(raw, pdfTextBudget)
	if err != nil {
		p.logger.Warn("extract.pdf.text_failed", "conversation_id", conversationID, "error", err)
		return map[string]any{"error": err.Error()}
	}
	if strings.TrimSpace(text) == "" {
		p.logger.Warn("extract.pdf.no_text", "conversation_id", conversationID, "pages", pages)
		return map[string]any{"error": "no text content found in PDF"}
	}

	refined := p.classifier.Classify(ctx, []byte(truncate(text, pdfReclassifyBudget))).Intent
	p.logger.Info("extract.pdf.reclassified",
		"conversation_id", conversationID,
		"pages", pages,
		"outer_intent", string(intent),
		"refined_intent", string(refined),
	)

	return p.email.Extract(ctx, []byte(text), conversationID, refined)
}
