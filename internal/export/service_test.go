package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/intake-router/internal/memory"
)

type fakeHistory struct {
	recs []memory.Record
	err  error
}

func (f *fakeHistory) History(_ context.Context, _ string) ([]memory.Record, error) {
	return f.recs, f.err
}

func TestConversationXLSX(t *testing.T) {
	store := &fakeHistory{recs: []memory.Record{
		{
			ID:             1,
			ConversationID: "conv-1",
			Timestamp:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Data: map[string]any{
				"source":           "user_input",
				"type":             "JSON",
				"intent":           "Invoice",
				"extracted_values": map[string]any{"invoice_id": "INV-1"},
			},
		},
		{
			ID:             2,
			ConversationID: "conv-1",
			Timestamp:      time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC),
			Data:           map[string]any{"agent": "email_extractor"},
		},
	}}

	svc := NewService(store, nil)
	raw, err := svc.ConversationXLSX(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Conversation")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Timestamp" {
		t.Fatalf("header row: %v", rows[0])
	}
	if rows[1][2] != "JSON" || rows[1][3] != "Invoice" {
		t.Fatalf("record row: %v", rows[1])
	}
	if rows[2][1] != "email_extractor" {
		t.Fatalf("agent record source column: %v", rows[2])
	}
}

func TestConversationXLSXStoreFailure(t *testing.T) {
	svc := NewService(&fakeHistory{err: errors.New("db gone")}, nil)
	if _, err := svc.ConversationXLSX(context.Background(), "conv-1"); err == nil {
		t.Fatal("expected error")
	}
}
