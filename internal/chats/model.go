// Package chats implements the encrypted chat-history persistence layer:
// CRUD over chat records, the per-user chat index used for authorization and
// enumeration, idempotent repair of index/record divergence, and a separate
// in-memory path for private (ephemeral) sessions.
package chats

import (
	"strings"
	"time"
)

// PrivateIDPrefix marks ephemeral chat ids. Records with this prefix live in
// process memory only and are lost on restart.
const PrivateIDPrefix = "private-"

// Greeting seeds every new chat with one assistant message.
const Greeting = "Hello! How can I assist you today?"

// DefaultTitle is the title of a chat before its first rename.
const DefaultTitle = "New conversation"

// RecoveredTitle is given to placeholder records recreated during index
// repair when the original record key vanished.
const RecoveredTitle = "Recovered conversation"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one turn of a conversation. Messages are immutable once
// appended, except that Update rewrites the full sequence of its chat.
type ChatMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
}

// Chat is the full history record. Durable chats are stored encrypted under
// "chat:<id>" and indexed under their owner's "user:<id>:chats" set; private
// chats live only in the process-scoped PrivateStore.
type Chat struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	UserID    string        `json:"userId"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Messages  []ChatMessage `json:"messages"`
	Private   bool          `json:"isPrivate,omitempty"`
}

// Preview is the lightweight listing form of a chat.
type Preview struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastMessage string    `json:"lastMessage"`
}

// IsPrivateID reports whether id denotes an ephemeral chat.
func IsPrivateID(id string) bool {
	return strings.HasPrefix(id, PrivateIDPrefix)
}

const previewLength = 50

// preview truncates the last message to previewLength runes, or falls back
// to the default title for an empty chat.
func (c *Chat) preview() Preview {
	last := DefaultTitle
	if len(c.Messages) > 0 {
		content := []rune(c.Messages[len(c.Messages)-1].Content)
		if len(content) > previewLength {
			content = content[:previewLength]
		}
		last = string(content)
	}
	return Preview{
		ID:          c.ID,
		Title:       c.Title,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		LastMessage: last,
	}
}

func chatKey(id string) string {
	return "chat:" + id
}

func userChatsKey(userID string) string {
	return "user:" + userID + ":chats"
}
