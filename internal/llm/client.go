package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/pzero-labs/pzero/internal/config"
)

// maxLineSize bounds a single NDJSON fragment line (1MB).
const maxLineSize = 1 << 20

// Client streams chat completions from an Ollama-compatible HTTP endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	options    chatOptions
	logger     *slog.Logger
}

// NewClient creates a completion client from generation configuration.
func NewClient(cfg config.GenerationConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		// Generation is expected to be slow; the timeout is multi-minute.
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.OllamaURL,
		model:      cfg.ModelName,
		options: chatOptions{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			NumCtx:      cfg.NumCtx,
		},
		logger: logger,
	}
}

// Chat opens one streaming completion request and yields incremental text
// chunks in arrival order. Lines that fail to parse as JSON are dropped
// without aborting the stream. The first fragment carrying the done flag
// terminates the sequence; any fault before that yields exactly one error
// and ends the sequence.
func (c *Client) Chat(ctx context.Context, messages []Message) iter.Seq2[*Chunk, error] {
	return func(yield func(*Chunk, error) bool) {
		body, err := json.Marshal(chatRequest{
			Model:    c.model,
			Messages: messages,
			Stream:   true,
			Options:  c.options,
		})
		if err != nil {
			yield(nil, fmt.Errorf("marshal chat request: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			yield(nil, fmt.Errorf("build chat request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			yield(nil, fmt.Errorf("chat request failed: %w", err))
			return
		}
		defer func() {
			if closeErr := resp.Body.Close(); closeErr != nil {
				c.logger.Debug("failed to close completion response body", "error", closeErr)
			}
		}()

		if resp.StatusCode != http.StatusOK {
			yield(nil, fmt.Errorf("completion endpoint returned status %d", resp.StatusCode))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		chunks := 0
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var fragment chatFragment
			if err := json.Unmarshal(line, &fragment); err != nil {
				// Noisy-transport tolerance: malformed fragments are dropped.
				continue
			}

			if fragment.Message.Content != "" {
				chunks++
				if !yield(&Chunk{Content: fragment.Message.Content}, nil) {
					return
				}
			}

			if fragment.Done {
				c.logger.Debug("completion stream finished",
					"model", c.model,
					"chunks", chunks,
					"elapsed", time.Since(start),
				)
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("chat stream error: %w", err))
			return
		}

		// The upstream closed the stream without a terminal fragment.
		yield(nil, fmt.Errorf("completion stream ended without done flag"))
	}
}
