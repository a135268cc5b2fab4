// Package inference wraps the hosted chat-completion API (Groq's
// OpenAI-compatible surface). Responses are consumed as a server-sent-event
// stream: deltas are forwarded to the caller as they arrive while the full
// text accumulates for post-hoc storage.
package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bloomweaver/backend/internal/common"
	"github.com/bloomweaver/backend/internal/logging"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
)

// Message is one prompt turn in API wire form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one streaming completion call.
type Request struct {
	Messages []Message
	Model    string
}

// Result carries the accumulated completion. CompletionTokens is the
// upstream-reported usage, or zero when the stream carried no usage event;
// callers fall back to estimating from Content length.
type Result struct {
	Content          string
	CompletionTokens int64
}

// Options configures the client.
type Options struct {
	APIKey  string
	BaseURL string
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        logging.Logger
}

// NewClient builds a client. No timeout is set on the HTTP client: a
// completion stream is open-ended, and a hung upstream blocks the request.
func NewClient(opts Options, log logging.Logger) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai"
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
		log:        log,
	}
}

type completionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream runs one completion call, invoking onDelta for every content
// fragment as it arrives. The returned Result is non-nil even on error and
// holds whatever content accumulated before the failure, so a caller whose
// consumer aborted early can still persist the partial turn.
func (c *Client) Stream(ctx context.Context, req Request, onDelta func(delta string)) (*Result, error) {
	result := &Result{}

	body := completionRequest{
		Messages:    req.Messages,
		Model:       req.Model,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		Stream:      true,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return result, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return result, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("%w: %v", common.ErrorUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, c.upstreamError(resp)
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Partial or non-JSON frames are skipped, not fatal.
			c.log.Debug(ctx, "skipping malformed stream frame", "error", err)
			continue
		}

		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				full.WriteString(delta)
				if onDelta != nil {
					onDelta(delta)
				}
			}
		}
		if chunk.Usage != nil && chunk.Usage.CompletionTokens > 0 {
			result.CompletionTokens = chunk.Usage.CompletionTokens
		}
	}

	result.Content = full.String()

	if err := scanner.Err(); err != nil {
		// Early consumer abort or a dropped upstream connection; whatever
		// accumulated is still returned for storage.
		return result, fmt.Errorf("%w: stream interrupted: %v", common.ErrorUpstream, err)
	}
	return result, nil
}

// upstreamError extracts the human-readable message from a non-2xx JSON
// error body, falling back to a generic message.
func (c *Client) upstreamError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return fmt.Errorf("%w: %s", common.ErrorUpstream, parsed.Error.Message)
	}
	return fmt.Errorf("%w: status %d", common.ErrorUpstream, resp.StatusCode)
}
