package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joseph-ayodele/intake-router/internal/orchestrator"
)

// Allowed extensions for discovery (lowercase, without '.').
var defaultExts = map[string]struct{}{
	"pdf":  {},
	"json": {},
	"eml":  {},
	"txt":  {},
}

// Pipeline is the slice of the orchestrator the ingestor drives.
type Pipeline interface {
	Process(ctx context.Context, input []byte, conversationID string, clearMemory bool) orchestrator.Envelope
}

// Result describes one ingested file.
type Result struct {
	SourcePath   string
	HashHex      string
	Deduplicated bool
	Envelope     orchestrator.Envelope
}

// DirStats aggregates a directory sweep.
type DirStats struct {
	Scanned      int
	Matched      int
	Succeeded    int
	Failed       int
	Deduplicated int
}

// Ingestor feeds dropped files through the intake pipeline. Files are
// deduplicated by content hash so a rename or re-drop of the same bytes
// does not trigger a second extraction.
type Ingestor struct {
	pipeline    Pipeline
	logger      *slog.Logger
	allowedExts map[string]struct{}

	mu   sync.Mutex
	seen map[string]struct{} // sha256 hex of already-processed content
}

func New(pipeline Pipeline, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		pipeline:    pipeline,
		logger:      logger,
		allowedExts: defaultExts,
		seen:        map[string]struct{}{},
	}
}

// IngestPath reads one file and runs it through the pipeline. Each file
// starts a fresh conversation.
func (i *Ingestor) IngestPath(ctx context.Context, path string) (Result, error) {
	var out Result

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, err
	}
	if !allowed(abs, i.allowedExts) {
		return out, fmt.Errorf("unsupported extension: %q", filepath.Ext(abs))
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return out, err
	}

	sum := sha256.Sum256(data)
	hashHex := hex.EncodeToString(sum[:])
	out = Result{SourcePath: abs, HashHex: hashHex}

	i.mu.Lock()
	_, dup := i.seen[hashHex]
	if !dup {
		i.seen[hashHex] = struct{}{}
	}
	i.mu.Unlock()
	if dup {
		out.Deduplicated = true
		i.logger.Info("ingest.skip_duplicate", "path", abs, "hash", hashHex)
		return out, nil
	}

	env := i.pipeline.Process(ctx, data, "", false)
	out.Envelope = env
	i.logger.Info("ingest.processed",
		"path", abs,
		"conversation_id", env.ConversationID,
		"error", env.Error)
	return out, nil
}

// IngestDirectory walks root, skips hidden entries, and ingests every
// file with an allowed extension. Per-file failures are collected, not
// fatal.
func (i *Ingestor) IngestDirectory(ctx context.Context, root string) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			stats.Failed++
			return nil
		}
		if isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !allowed(path, i.allowedExts) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			stats.Failed++
			i.logger.Warn("ingest.file_failed", "path", path, "error", err)
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

func allowed(path string, exts map[string]struct{}) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := exts[ext]
	return ok
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
