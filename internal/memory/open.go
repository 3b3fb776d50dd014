package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

var schemaDDL = map[string][]string{
	dialectSQLite: {
		`CREATE TABLE IF NOT EXISTS conversation_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_logs_conv_ts
			ON conversation_logs (conversation_id, timestamp)`,
	},
	dialectPostgres: {
		`CREATE TABLE IF NOT EXISTS conversation_logs (
			id BIGSERIAL PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_logs_conv_ts
			ON conversation_logs (conversation_id, timestamp)`,
	},
}

// Open connects the conversation store. A postgres:// or postgresql:// DSN
// selects the pgx driver; anything else is treated as a sqlite file path
// (":memory:" works for throwaway runs). The schema is created on open.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialect := dialectSQLite
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialect = dialectPostgres
		driver = "pgx"
	}

	logger.Info("memory.open", "dialect", dialect)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		logger.Error("memory.open_failed", "dialect", dialect, "error", err)
		return nil, fmt.Errorf("open conversation store: %w", err)
	}
	if dialect == dialectSQLite {
		// A single connection serializes writers; sqlite has no row locks.
		db.SetMaxOpenConns(1)
	}

	for _, ddl := range schemaDDL[dialect] {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			logger.Error("memory.schema_failed", "dialect", dialect, "error", err)
			return nil, fmt.Errorf("init conversation store schema: %w", err)
		}
	}

	logger.Info("memory.ready", "dialect", dialect)
	return &Store{db: db, dialect: dialect, logger: logger}, nil
}

// rebind rewrites ? placeholders to the $n form postgres expects.
func rebind(dialect, query string) string {
	if dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
