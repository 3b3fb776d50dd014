package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store is the append-only conversation log. Records are immutable once
// written; ordering within a conversation is by timestamp ascending.
type Store struct {
	db      *sql.DB
	dialect string
	logger  *slog.Logger

	// Serializes Log calls so same-conversation inserts cannot interleave.
	// Reads go straight to the database.
	writeMu sync.Mutex
}

// Record is one persisted conversation log row.
type Record struct {
	ID             int64          `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Data           map[string]any `json:"data"`
}

// Log appends a record for the conversation, stamping the current UTC time.
// The stored payload carries the timestamp alongside the caller's fields.
func (s *Store) Log(ctx context.Context, conversationID string, data map[string]any) error {
	ts := time.Now().UTC().Format(time.RFC3339Nano)

	entry := make(map[string]any, len(data)+1)
	entry["timestamp"] = ts
	for k, v := range data {
		entry[k] = v
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		s.logger.Error("memory.log.encode_failed", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("encode conversation record: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx,
		rebind(s.dialect, `INSERT INTO conversation_logs (conversation_id, timestamp, data) VALUES (?, ?, ?)`),
		conversationID, ts, string(payload))
	if err != nil {
		s.logger.Error("memory.log.insert_failed", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("append conversation record: %w", err)
	}
	s.logger.Debug("memory.log.ok", "conversation_id", conversationID, "bytes", len(payload))
	return nil
}

// GetContext returns all records for the conversation, oldest first.
// An unknown id yields an empty slice, not an error.
func (s *Store) GetContext(ctx context.Context, conversationID string) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		rebind(s.dialect, `SELECT data FROM conversation_logs WHERE conversation_id = ? ORDER BY timestamp ASC, id ASC`),
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("query conversation context: %w", err)
	}
	defer rows.Close()

	out := make([]map[string]any, 0, 8)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan conversation record: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			s.logger.Warn("memory.context.malformed_record", "conversation_id", conversationID, "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetLastExtraction scans the conversation newest-first and returns the
// extracted_values of the first record carrying that key, or an empty map.
// The scan deliberately skips interleaved audit entries without the key,
// so no separate "latest extraction" index is maintained.
func (s *Store) GetLastExtraction(ctx context.Context, conversationID string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		rebind(s.dialect, `SELECT data FROM conversation_logs WHERE conversation_id = ? ORDER BY timestamp DESC, id DESC`),
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("query last extraction: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan conversation record: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		if v, ok := m["extracted_values"]; ok {
			if values, ok := v.(map[string]any); ok {
				return values, nil
			}
		}
	}
	return map[string]any{}, rows.Err()
}

// ClearConversation deletes all records for the conversation id.
func (s *Store) ClearConversation(ctx context.Context, conversationID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		rebind(s.dialect, `DELETE FROM conversation_logs WHERE conversation_id = ?`),
		conversationID)
	if err != nil {
		s.logger.Error("memory.clear_failed", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("clear conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Info("memory.clear.ok", "conversation_id", conversationID, "deleted", n)
	}
	return nil
}

// History returns typed records for the conversation, oldest first, for
// inspection and export tooling.
func (s *Store) History(ctx context.Context, conversationID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		rebind(s.dialect, `SELECT id, conversation_id, timestamp, data FROM conversation_logs WHERE conversation_id = ? ORDER BY timestamp ASC, id ASC`),
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("query conversation history: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		var (
			rec Record
			ts  string
			raw string
		)
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &ts, &raw); err != nil {
			return nil, fmt.Errorf("scan conversation record: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			parsed, _ = time.Parse(time.RFC3339, ts)
		}
		rec.Timestamp = parsed
		if err := json.Unmarshal([]byte(raw), &rec.Data); err != nil {
			s.logger.Warn("memory.history.malformed_record", "conversation_id", conversationID, "id", rec.ID, "error", err)
			rec.Data = map[string]any{}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
