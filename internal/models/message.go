package models

import "time"

// Message roles stored in the chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat entry between a user and the assistant.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}
