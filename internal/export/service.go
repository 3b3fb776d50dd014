package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/intake-router/internal/memory"
)

// Service is a tiny façade over the conversation store that produces XLSX
// bytes for history exports.
type Service struct {
	store  HistoryReader
	logger *slog.Logger
}

// HistoryReader is the store surface exports need.
type HistoryReader interface {
	History(ctx context.Context, conversationID string) ([]memory.Record, error)
}

func NewService(store HistoryReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ConversationXLSX returns an XLSX workbook (as bytes) with one row per
// conversation record, oldest first.
func (s *Service) ConversationXLSX(ctx context.Context, conversationID string) ([]byte, error) {
	start := time.Now()

	recs, err := s.store.History(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query conversation history: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Conversation"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// Drop the default sheet excelize creates.
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{"Timestamp", "Source", "Format", "Intent", "Extracted Values"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		source := stringField(r.Data, "source")
		if source == "" {
			source = stringField(r.Data, "agent")
		}
		extracted := ""
		if v, ok := r.Data["extracted_values"]; ok {
			if b, err := json.Marshal(v); err == nil {
				extracted = string(b)
			}
		}

		values := []any{
			r.Timestamp.UTC().Format(time.RFC3339),
			source,
			stringField(r.Data, "type"),
			stringField(r.Data, "intent"),
			extracted,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.conversation.ok",
		"conversation_id", conversationID,
		"rows", row-2,
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
