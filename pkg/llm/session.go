package llm

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// ToolCallRequest is a decoded tool invocation requested by the model.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// ToolCallResult is the outcome of running one requested tool.
type ToolCallResult struct {
	ID     string
	Name   string
	Result map[string]interface{}
	Err    error
}

// ToolRunner executes a model-requested tool call.
type ToolRunner interface {
	RunTool(ctx context.Context, call ToolCallRequest) (map[string]interface{}, error)
}

// ToolRunnerFunc adapts a function to the ToolRunner interface.
type ToolRunnerFunc func(ctx context.Context, call ToolCallRequest) (map[string]interface{}, error)

func (f ToolRunnerFunc) RunTool(ctx context.Context, call ToolCallRequest) (map[string]interface{}, error) {
	return f(ctx, call)
}

// StepInfo reports one completed generation round to OnStepFinish.
type StepInfo struct {
	Text        string
	ToolCalls   []ToolCallRequest
	ToolResults []ToolCallResult
}

// SessionRequest drives a multi-step tool-calling conversation.
type SessionRequest struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
	Runner   ToolRunner
	// MaxSteps bounds the number of generation rounds. Zero means one.
	MaxSteps     int
	OnStepFinish func(StepInfo)
}

// SessionResult is the final outcome of a session.
type SessionResult struct {
	Text      string
	ToolCalls []ToolCallRequest
	Steps     []StepInfo
}

// RunSession loops generation rounds until the model stops requesting
// tools or MaxSteps is reached. Tool-runner failures are fed back to the
// model as error results rather than aborting the session; only a failed
// completion call ends the session with an error.
func (c *Client) RunSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	maxSteps := req.MaxSteps
	if maxSteps < 1 {
		maxSteps = 1
	}

	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	result := &SessionResult{}
	for step := 0; step < maxSteps; step++ {
		reply, _, err := c.Complete(ctx, messages, req.Tools)
		if err != nil {
			return nil, err
		}

		info := StepInfo{Text: reply.Content}
		for _, tc := range reply.ToolCalls {
			info.ToolCalls = append(info.ToolCalls, decodeToolCall(tc))
		}

		if len(reply.ToolCalls) == 0 {
			result.Text = reply.Content
			result.Steps = append(result.Steps, info)
			if req.OnStepFinish != nil {
				req.OnStepFinish(info)
			}
			return result, nil
		}

		messages = append(messages, reply)
		for _, call := range info.ToolCalls {
			res := c.runTool(ctx, req.Runner, call)
			info.ToolResults = append(info.ToolResults, res)
			messages = append(messages, toolResultMessage(res))
		}

		result.ToolCalls = append(result.ToolCalls, info.ToolCalls...)
		result.Steps = append(result.Steps, info)
		result.Text = reply.Content
		if req.OnStepFinish != nil {
			req.OnStepFinish(info)
		}
	}

	return result, nil
}

func (c *Client) runTool(ctx context.Context, runner ToolRunner, call ToolCallRequest) ToolCallResult {
	res := ToolCallResult{ID: call.ID, Name: call.Name}
	if runner == nil {
		res.Err = errors.New("no tool runner configured")
		return res
	}
	out, err := runner.RunTool(ctx, call)
	if err != nil {
		res.Err = err
		return res
	}
	res.Result = out
	return res
}

func decodeToolCall(tc ToolCall) ToolCallRequest {
	call := ToolCallRequest{ID: tc.ID, Name: tc.Function.Name}
	if tc.Function.Arguments != "" {
		// malformed arguments are passed to the runner as empty
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &call.Arguments)
	}
	return call
}

func toolResultMessage(res ToolCallResult) Message {
	var content []byte
	if res.Err != nil {
		content, _ = json.Marshal(map[string]interface{}{"error": res.Err.Error()})
	} else {
		content, _ = json.Marshal(res.Result)
	}
	return Message{Role: "tool", Content: string(content), ToolCallID: res.ID}
}
