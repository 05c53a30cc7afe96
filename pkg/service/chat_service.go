package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Aaditya-brrt/adminflow/pkg/llm"
	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// chatMaxSteps is the generation-round budget for interactive chat,
// twice the workflow budget.
const chatMaxSteps = 10

// ChatService manages tool-augmented conversations.
type ChatService struct {
	store  storage.Store
	broker Broker
	llm    SessionRunner
	logger Logger
}

func NewChatService(store storage.Store, b Broker, runner SessionRunner, logger Logger) *ChatService {
	return &ChatService{store: store, broker: b, llm: runner, logger: logger}
}

func (s *ChatService) Create(userID, title string) (models.Chat, error) {
	if userID == "" {
		return models.Chat{}, errors.New("user id required")
	}
	now := time.Now()
	chat := models.Chat{
		ID:            uuid.New().String(),
		UserID:        userID,
		Title:         title,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.SaveChat(chat); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

func (s *ChatService) Get(id string) (models.Chat, error) {
	return s.store.GetChat(id)
}

func (s *ChatService) List(userID string) ([]models.Chat, error) {
	return s.store.ListChats(userID)
}

func (s *ChatService) Delete(id string) error {
	return s.store.DeleteChat(id)
}

func (s *ChatService) Messages(chatID string) ([]models.ChatMessage, error) {
	return s.store.ListChatMessages(chatID)
}

// Send appends a user message to the chat, drives a tool-augmented
// session over the full history and persists the assistant reply. An
// empty chatID starts a new chat titled from the message.
func (s *ChatService) Send(ctx context.Context, chatID, userID, content string) (models.ChatMessage, error) {
	if content == "" {
		return models.ChatMessage{}, errors.New("message content required")
	}

	var chat models.Chat
	var err error
	if chatID == "" {
		chat, err = s.Create(userID, DeriveTitle(content))
	} else {
		chat, err = s.store.GetChat(chatID)
	}
	if err != nil {
		return models.ChatMessage{}, err
	}

	now := time.Now()
	userMsg := models.ChatMessage{
		ID:        uuid.New().String(),
		ChatID:    chat.ID,
		Role:      models.UserChatRole,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.store.SaveChatMessage(userMsg); err != nil {
		return models.ChatMessage{}, err
	}

	history, err := s.store.ListChatMessages(chat.ID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	messages := make([]llm.Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	defs, _, err := resolveTools(ctx, s.broker, chat.UserID, nil)
	if err != nil {
		return models.ChatMessage{}, err
	}

	res, err := s.llm.RunSession(ctx, llm.SessionRequest{
		System:   chatSystemPrompt(),
		Messages: messages,
		Tools:    defs,
		Runner:   brokerToolRunner(s.broker, chat.UserID),
		MaxSteps: chatMaxSteps,
	})
	if err != nil {
		return models.ChatMessage{}, errors.Wrap(err, "chat session")
	}

	assistantMsg := models.ChatMessage{
		ID:        uuid.New().String(),
		ChatID:    chat.ID,
		Role:      models.AssistantChatRole,
		Content:   res.Text,
		CreatedAt: time.Now(),
	}
	if len(res.ToolCalls) > 0 {
		assistantMsg.ToolCalls = models.JSONMap{"calls": toolCallSummaries(res.ToolCalls)}
	}
	if results := toolResultSummaries(res.Steps); len(results) > 0 {
		assistantMsg.ToolResults = models.JSONMap{"results": results}
	}
	if err := s.store.SaveChatMessage(assistantMsg); err != nil {
		return models.ChatMessage{}, err
	}

	chat.LastMessageAt = assistantMsg.CreatedAt
	if err := s.store.UpdateChat(chat); err != nil {
		s.logger.Errorf("Failed to bump chat %s: %v", chat.ID, err)
	}

	return assistantMsg, nil
}

func chatSystemPrompt() string {
	return fmt.Sprintf("You are a helpful assistant with access to the user's connected tools. "+
		"Use them when they help answer the request. You have at most %d steps per reply; "+
		"prefer direct answers when no tool is needed.", chatMaxSteps)
}
