package service

import (
	"context"

	"github.com/Aaditya-brrt/adminflow/pkg/broker"
	"github.com/Aaditya-brrt/adminflow/pkg/llm"
	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/pkg/errors"
)

// Broker is the slice of the tool-broker API the services use.
type Broker interface {
	ListToolkits(ctx context.Context) ([]broker.Toolkit, error)
	ListConnectedAccounts(ctx context.Context, userID string) ([]broker.ConnectedAccount, error)
	GetTools(ctx context.Context, userID string, toolkits []string, limit int) ([]broker.Tool, error)
	RunTool(ctx context.Context, userID, toolSlug string, args map[string]interface{}) (map[string]interface{}, error)
	ListTriggerTypes(ctx context.Context, toolkitSlug string) ([]broker.TriggerType, error)
	CreateTrigger(ctx context.Context, userID, triggerSlug, connectedAccountID string, config map[string]interface{}) (broker.TriggerInstance, error)
	DeleteTrigger(ctx context.Context, triggerID string) error
}

// forcedToolkits are always offered to the model in addition to the
// toolkits the user has connected.
var forcedToolkits = []string{"composio", "composio_search"}

// toolPageLimit caps how many tool definitions one session is offered.
const toolPageLimit = 100

// resolveTools collects the toolkits of the user's usable connected
// accounts plus the forced ones and fetches their tool definitions. It
// returns the resolved toolkit slugs alongside the definitions so the
// caller can name them in the prompt. Accounts that are not ACTIVE, or
// that the user has disabled, contribute no toolkit.
func resolveTools(ctx context.Context, b Broker, userID string, extra []string) ([]llm.ToolDefinition, []string, error) {
	seen := map[string]bool{}
	toolkits := []string{}
	add := func(slug string) {
		if slug != "" && !seen[slug] {
			seen[slug] = true
			toolkits = append(toolkits, slug)
		}
	}
	accounts, err := b.ListConnectedAccounts(ctx, userID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "listing connected accounts")
	}
	for _, acc := range accounts {
		if acc.Status != "ACTIVE" || acc.IsDisabled {
			continue
		}
		add(acc.ToolkitSlug)
	}
	for _, slug := range extra {
		add(slug)
	}
	for _, slug := range forcedToolkits {
		add(slug)
	}

	tools, err := b.GetTools(ctx, userID, toolkits, toolPageLimit)
	if err != nil {
		return nil, nil, errors.Wrap(err, "fetching tools")
	}

	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Slug,
			Description: t.Description,
			Parameters:  t.InputParameters,
		})
	}
	return defs, toolkits, nil
}

// toolCallSummaries flattens the tool calls of a session into plain
// maps for JSONB persistence.
func toolCallSummaries(calls []llm.ToolCallRequest) []interface{} {
	out := make([]interface{}, 0, len(calls))
	for _, call := range calls {
		out = append(out, map[string]interface{}{
			"id":        call.ID,
			"name":      call.Name,
			"arguments": call.Arguments,
		})
	}
	return out
}

// toolResultSummaries flattens the tool results of a session, keeping
// the error text of failed calls.
func toolResultSummaries(steps []llm.StepInfo) []interface{} {
	var out []interface{}
	for _, step := range steps {
		for _, res := range step.ToolResults {
			entry := map[string]interface{}{
				"id":      res.ID,
				"name":    res.Name,
				"success": res.Err == nil,
			}
			if res.Err != nil {
				entry["error"] = res.Err.Error()
			} else if res.Result != nil {
				entry["result"] = res.Result
			}
			out = append(out, entry)
		}
	}
	return out
}

// brokerToolRunner adapts broker tool execution to the session loop. A
// result carrying a non-empty "error" field counts as a failure even
// when the transport call succeeded.
func brokerToolRunner(b Broker, userID string) llm.ToolRunner {
	return llm.ToolRunnerFunc(func(ctx context.Context, call llm.ToolCallRequest) (map[string]interface{}, error) {
		result, err := b.RunTool(ctx, userID, call.Name, call.Arguments)
		if err != nil {
			return nil, err
		}
		if msg := models.JSONMap(result).String("error"); msg != "" {
			return result, errors.New(msg)
		}
		return result, nil
	})
}
