package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Message is one chat-completion message on the wire.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-requested tool invocation as it appears in an
// assistant message. Arguments arrive as a JSON-encoded string.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ToolDefinition describes one callable tool offered to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type completionRequest struct {
	Model    string     `json:"model"`
	Messages []Message  `json:"messages"`
	Tools    []wireTool `json:"tools,omitempty"`
}

type wireTool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

type completionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client

	maxRetries int
	retryDelay time.Duration
}

func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Complete performs one non-streaming chat completion. Transient
// failures (429, 5xx) are retried with a growing delay.
func (c *Client) Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (Message, string, error) {
	body := completionRequest{
		Model:    c.model,
		Messages: messages,
	}
	for _, t := range tools {
		body.Tools = append(body.Tools, wireTool{Type: "function", Function: t})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Message{}, "", errors.Wrap(err, "encoding completion request")
	}

	resp, err := c.doWithRetry(ctx, payload)
	if err != nil {
		return Message{}, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return Message{}, "", errors.Errorf("completion API error: %d - %s", resp.StatusCode, string(raw))
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Message{}, "", errors.Wrap(err, "decoding completion response")
	}
	if out.Error != nil {
		return Message{}, "", errors.Errorf("completion API error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return Message{}, "", errors.New("completion API returned no choices")
	}
	choice := out.Choices[0]
	return choice.Message, choice.FinishReason, nil
}

func (c *Client) doWithRetry(ctx context.Context, payload []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = errors.Errorf("completion API error: %d - %s", resp.StatusCode, string(raw))
			continue
		}
		return resp, nil
	}
	return nil, errors.Wrapf(lastErr, "completion request failed after %d attempts", c.maxRetries+1)
}
