package service_test

import (
	"context"
	"testing"

	"github.com/Aaditya-brrt/adminflow/pkg/llm"
	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/service"
	"github.com/Aaditya-brrt/adminflow/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSend(t *testing.T) {
	store := storage.NewMockStore()
	runner := &fakeRunner{
		text: "You have 3 unread messages.",
		steps: []llm.StepInfo{
			{
				ToolCalls: []llm.ToolCallRequest{
					{ID: "call-1", Name: "GMAIL_FETCH_EMAILS", Arguments: map[string]interface{}{"limit": 5}},
				},
				ToolResults: []llm.ToolCallResult{
					{ID: "call-1", Name: "GMAIL_FETCH_EMAILS", Result: map[string]interface{}{"count": 3}},
				},
			},
			{Text: "You have 3 unread messages."},
		},
	}
	chats := service.NewChatService(store, &fakeBroker{}, runner, logger{})

	reply, err := chats.Send(context.Background(), "", "user-1", "How many unread emails do I have?")
	require.NoError(t, err)
	assert.Equal(t, models.AssistantChatRole, reply.Role)
	assert.Equal(t, "You have 3 unread messages.", reply.Content)
	assert.NotNil(t, reply.ToolCalls)

	// the tool outcome travels with the message
	require.NotNil(t, reply.ToolResults)
	results, ok := reply.ToolResults["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 1)
	result, ok := results[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "GMAIL_FETCH_EMAILS", result["name"])
	assert.Equal(t, true, result["success"])

	// a new chat was created, titled from the first message
	chatList, err := chats.List("user-1")
	require.NoError(t, err)
	require.Len(t, chatList, 1)
	assert.Equal(t, "How many unread emails...", chatList[0].Title)
	assert.Equal(t, reply.CreatedAt, chatList[0].LastMessageAt)

	// user message then assistant message, in order
	messages, err := chats.Messages(chatList[0].ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.UserChatRole, messages[0].Role)
	assert.Equal(t, models.AssistantChatRole, messages[1].Role)

	// a follow-up lands in the same chat
	_, err = chats.Send(context.Background(), chatList[0].ID, "user-1", "Summarize them")
	require.NoError(t, err)
	messages, err = chats.Messages(chatList[0].ID)
	require.NoError(t, err)
	assert.Len(t, messages, 4)
}

func TestChatSendValidation(t *testing.T) {
	chats := service.NewChatService(storage.NewMockStore(), &fakeBroker{}, &fakeRunner{}, logger{})

	_, err := chats.Send(context.Background(), "", "user-1", "")
	assert.Error(t, err)

	_, err = chats.Send(context.Background(), "missing-chat", "user-1", "hello")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
