package interfaces

import "context"

// Message is a single turn in an LLM conversation
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// LLMService abstracts the AI miner's model provider
type LLMService interface {
	// Chat generates a completion for the conversation history
	Chat(ctx context.Context, messages []Message) (string, error)

	// Provider names the backing service for logging
	Provider() string

	Close() error
}
