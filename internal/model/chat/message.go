package chat

import "time"

// Sender values recorded with each stored message.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Message persists one side of a conversation turn.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	IsVoice   bool      `json:"isVoice,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
