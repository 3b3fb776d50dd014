package llm

import (
	"context"
	"errors"
)

// Request is a single completion call.
type Request struct {
	Prompt   string
	System   string
	Model    string // empty -> gateway default
	WantJSON bool
}

// Completer is the interface the classifier and extractors depend on.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrExhausted marks a completion that failed after the full retry budget.
// It is distinguishable from validation and configuration errors.
var ErrExhausted = errors.New("completion retries exhausted")
