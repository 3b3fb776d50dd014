package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/joseph-ayodele/intake-router/internal/common"
)

// Config for the completion gateway.
type Config struct {
	APIKey         string  // if empty, falls back to env OPENAI_API_KEY
	BaseURL        string  // default https://api.openai.com/v1
	Model          string  // e.g. "gpt-4o-mini"
	Temperature    float32 // low, deterministic-leaning
	Timeout        time.Duration
	MaxRetries     int           // total attempts per call
	RetryBaseDelay time.Duration // first backoff sleep; doubles per attempt
}

// Gateway wraps an OpenAI-compatible chat/completions endpoint with bounded
// retry and JSON-mode negotiation. It is the single external dependency
// boundary; callers parse the returned text themselves.
type Gateway struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGateway fails fast when no credential is available: that is a
// configuration error, not a transient fault, and is never retried.
func NewGateway(cfg Config, logger *slog.Logger) (*Gateway, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("completion gateway: missing API key: %w", common.ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Complete returns the raw content of the top completion choice. When
// req.WantJSON is set it negotiates the backend's structured-output mode and
// additionally appends a JSON instruction to prompts that do not already
// mention JSON, for backends without a native mode.
func (g *Gateway) Complete(ctx context.Context, req Request) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.cfg.Model
	}
	prompt := req.Prompt
	if req.WantJSON && !strings.Contains(strings.ToLower(prompt), "json") {
		prompt += "\n\nPlease respond in JSON format."
	}

	messages := make([]map[string]any, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]any{"role": "user", "content": prompt})

	body := map[string]any{
		"model":       model,
		"temperature": g.cfg.Temperature,
		"messages":    messages,
	}
	if req.WantJSON {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	g.logger.Info("llm.complete.start",
		"req_id", rid,
		"model", model,
		"want_json", req.WantJSON,
		"prompt_len", len(prompt),
	)

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + g.cfg.APIKey}

	var content string
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(g.cfg.MaxRetries-1), retry.NewExponential(g.cfg.RetryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		actx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()

		raw, _, err := sendJSON(actx, g.httpClient, endpoint, body, headers, g.logger)
		if err != nil {
			g.logger.Warn("llm.complete.attempt_failed", "req_id", rid, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}

		var cc struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(raw, &cc); err != nil {
			g.logger.Warn("llm.complete.attempt_failed", "req_id", rid, "attempt", attempt, "error", err)
			return retry.RetryableError(fmt.Errorf("decode completion response: %w", err))
		}
		if len(cc.Choices) == 0 {
			g.logger.Warn("llm.complete.attempt_failed", "req_id", rid, "attempt", attempt, "error", "no choices")
			return retry.RetryableError(fmt.Errorf("no choices in completion response"))
		}
		content = cc.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		g.logger.Error("llm.complete.exhausted",
			"req_id", rid,
			"attempts", attempt,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempt, err)
	}

	g.logger.Info("llm.complete.ok",
		"req_id", rid,
		"attempts", attempt,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
