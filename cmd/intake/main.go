package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/intake-router/internal/classify"
	"github.com/joseph-ayodele/intake-router/internal/common"
	"github.com/joseph-ayodele/intake-router/internal/export"
	"github.com/joseph-ayodele/intake-router/internal/extract"
	"github.com/joseph-ayodele/intake-router/internal/llm"
	"github.com/joseph-ayodele/intake-router/internal/memory"
	"github.com/joseph-ayodele/intake-router/internal/orchestrator"
	"github.com/joseph-ayodele/intake-router/internal/pdftext"
)

// intake runs the document pipeline from the command line: feed it a file
// (or stdin) and it prints the resulting envelope as indented JSON. The
// -history and -export modes only touch the conversation store and work
// without an API key.
func main() {
	var (
		dbDSN        = flag.String("db", "", "conversation store DSN (overrides INTAKE_DB_DSN)")
		conversation = flag.String("conversation", "", "conversation id (generated when empty)")
		clear        = flag.Bool("clear", false, "clear conversation memory before processing")
		history      = flag.String("history", "", "print the log of the given conversation and exit")
		exportID     = flag.String("export", "", "export the given conversation as XLSX and exit")
		out          = flag.String("out", "", "output path for -export (default <id>.xlsx)")
		verbose      = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	if *dbDSN != "" {
		cfg.Database.DSN = *dbDSN
	}

	store, err := memory.Open(ctx, cfg.Database.DSN, logger)
	if err != nil {
		fatalf("open conversation store: %v", err)
	}
	defer store.Close()

	switch {
	case *history != "":
		err = printHistory(ctx, store, *history)
	case *exportID != "":
		err = exportConversation(ctx, store, logger, *exportID, *out)
	default:
		err = process(ctx, cfg, store, logger, *conversation, *clear)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func process(ctx context.Context, cfg *common.Config, store *memory.Store, logger *slog.Logger, conversationID string, clearMemory bool) error {
	input, err := readInput()
	if err != nil {
		return err
	}

	gateway, err := llm.NewGateway(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		RetryBaseDelay: cfg.LLM.RetryBaseDelay,
	}, logger)
	if err != nil {
		return err
	}

	pdf := pdftext.NewExtractor(logger)
	classifier := classify.New(gateway, pdf, logger)
	email := extract.NewEmail(gateway, store, logger)
	jsonPayload := extract.NewJSONPayload(gateway, store, logger)
	pdfExtractor := extract.NewPDF(pdf, classifier, email, logger)
	processor := orchestrator.New(classifier, store, pdf, email, jsonPayload, pdfExtractor, logger)

	env := processor.Process(ctx, input, conversationID, clearMemory)
	return printJSON(env)
}

func printHistory(ctx context.Context, store *memory.Store, conversationID string) error {
	records, err := store.History(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return printJSON(records)
}

func exportConversation(ctx context.Context, store *memory.Store, logger *slog.Logger, conversationID, path string) error {
	data, err := export.NewService(store, logger).ConversationXLSX(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if path == "" {
		path = conversationID + ".xlsx"
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	return nil
}

// readInput returns the positional file argument, or stdin when no file
// is given.
func readInput() ([]byte, error) {
	if path := flag.Arg(0); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return data, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
