package ai

import (
	"context"

	"github.com/pkg/errors"
)

// Message is one turn of conversation history as the backend sees it: the
// role plus the currently selected version of that message's content.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// StreamProvider is an optional interface. Providers may implement streaming chat.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}

// ErrInvalidResponse marks a 2xx reply whose body did not contain a usable
// assistant message. Callers surface it differently from transport failures.
var ErrInvalidResponse = errors.New("ai: invalid response format")
