package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Aaditya-brrt/adminflow/pkg/llm"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id"`
	} `json:"messages"`
	Tools []struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
}

func toolCallResponse(id, name, arguments string) string {
	return `{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"` + id +
		`","type":"function","function":{"name":"` + name + `","arguments":"` + arguments + `"}}]},"finish_reason":"tool_calls"}]}`
}

func textResponse(text string) string {
	return `{"choices":[{"message":{"role":"assistant","content":"` + text + `"},"finish_reason":"stop"}]}`
}

func TestRunSessionToolLoop(t *testing.T) {
	var calls int32
	var requests []wireRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(toolCallResponse("call-1", "GMAIL_FETCH_EMAILS", `{\"limit\": 5}`)))
			return
		}
		w.Write([]byte(textResponse("3 unread messages")))
	}))
	defer server.Close()

	client := llm.NewClient(server.URL, "test-key", "gpt-4o")

	var ranCalls []llm.ToolCallRequest
	var stepTexts []string
	res, err := client.RunSession(context.Background(), llm.SessionRequest{
		System:   "You are a test assistant.",
		Messages: []llm.Message{{Role: "user", Content: "check my email"}},
		Tools:    []llm.ToolDefinition{{Name: "GMAIL_FETCH_EMAILS"}},
		Runner: llm.ToolRunnerFunc(func(ctx context.Context, call llm.ToolCallRequest) (map[string]interface{}, error) {
			ranCalls = append(ranCalls, call)
			return map[string]interface{}{"count": 3}, nil
		}),
		MaxSteps: 5,
		OnStepFinish: func(info llm.StepInfo) {
			stepTexts = append(stepTexts, info.Text)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "3 unread messages", res.Text)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "GMAIL_FETCH_EMAILS", res.ToolCalls[0].Name)

	require.Len(t, ranCalls, 1)
	assert.Equal(t, "call-1", ranCalls[0].ID)
	assert.Equal(t, float64(5), ranCalls[0].Arguments["limit"])

	assert.Len(t, stepTexts, 2)

	// second request carries the assistant tool call and the tool result
	require.Len(t, requests, 2)
	second := requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call-1", last.ToolCallID)
	assert.JSONEq(t, `{"count": 3}`, last.Content)
}

func TestRunSessionToolErrorFedBack(t *testing.T) {
	var calls int32
	var lastToolContent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(toolCallResponse("call-1", "SLACK_POST_MESSAGE", `{}`)))
			return
		}
		lastToolContent = req.Messages[len(req.Messages)-1].Content
		w.Write([]byte(textResponse("could not post")))
	}))
	defer server.Close()

	client := llm.NewClient(server.URL, "test-key", "gpt-4o")
	res, err := client.RunSession(context.Background(), llm.SessionRequest{
		Messages: []llm.Message{{Role: "user", Content: "post an update"}},
		Tools:    []llm.ToolDefinition{{Name: "SLACK_POST_MESSAGE"}},
		Runner: llm.ToolRunnerFunc(func(ctx context.Context, call llm.ToolCallRequest) (map[string]interface{}, error) {
			return nil, errors.New("channel not found")
		}),
		MaxSteps: 5,
	})
	// a failing tool does not fail the session
	require.NoError(t, err)
	assert.Equal(t, "could not post", res.Text)
	assert.JSONEq(t, `{"error": "channel not found"}`, lastToolContent)

	require.Len(t, res.Steps, 2)
	require.Len(t, res.Steps[0].ToolResults, 1)
	assert.Error(t, res.Steps[0].ToolResults[0].Err)
}

func TestRunSessionStopsAtMaxSteps(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		// the model keeps asking for tools forever
		w.Write([]byte(toolCallResponse("call-x", "LOOPING_TOOL", `{}`)))
	}))
	defer server.Close()

	client := llm.NewClient(server.URL, "test-key", "gpt-4o")
	res, err := client.RunSession(context.Background(), llm.SessionRequest{
		Messages: []llm.Message{{Role: "user", Content: "loop"}},
		Tools:    []llm.ToolDefinition{{Name: "LOOPING_TOOL"}},
		Runner: llm.ToolRunnerFunc(func(ctx context.Context, call llm.ToolCallRequest) (map[string]interface{}, error) {
			return map[string]interface{}{}, nil
		}),
		MaxSteps: 3,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Len(t, res.Steps, 3)
}

func TestRunSessionCompletionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid request"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := llm.NewClient(server.URL, "test-key", "gpt-4o")
	_, err := client.RunSession(context.Background(), llm.SessionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
		MaxSteps: 2,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
