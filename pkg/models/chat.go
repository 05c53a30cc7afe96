package models

import "time"

type ChatRole string

const (
	UserChatRole      ChatRole = "user"
	AssistantChatRole ChatRole = "assistant"
	SystemChatRole    ChatRole = "system"
)

// Chat is an interactive conversation with the tool-augmented model.
type Chat struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	Title         string    `json:"title" db:"title"`
	Metadata      JSONMap   `json:"metadata,omitempty" db:"metadata"`
	LastMessageAt time.Time `json:"last_message_at" db:"last_message_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type ChatMessage struct {
	ID          string    `json:"id" db:"id"`
	ChatID      string    `json:"chat_id" db:"chat_id"`
	Role        ChatRole  `json:"role" db:"role"`
	Content     string    `json:"content" db:"content"`
	ToolCalls   JSONMap   `json:"tool_calls,omitempty" db:"tool_calls"`
	ToolResults JSONMap   `json:"tool_results,omitempty" db:"tool_results"`
	Metadata    JSONMap   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
