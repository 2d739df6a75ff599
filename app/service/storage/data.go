package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Step string

const (
	StepQuery         Step = "query"
	StepAsk           Step = "ask"
	StepExpectingCity Step = "expecting_city"
)

// ChatState is the persisted conversation position of one chat.
type ChatState struct {
	Step         Step      `json:"step"`
	PendingQuery string    `json:"pending_query,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store keeps conversation state and button tokens across restarts.
type Store interface {
	// LoadChat returns a StepQuery state for chats never seen before.
	LoadChat(ctx context.Context, chatID int64) (ChatState, error)
	SaveChat(ctx context.Context, chatID int64, state ChatState) error
	// PutTokens stores toggle tokens in one write and returns the short
	// keys embedded in the buttons, in the same order.
	PutTokens(ctx context.Context, tokens []string) ([]string, error)
	// Token returns ErrNotFound for unknown or expired keys.
	Token(ctx context.Context, key string) (string, error)
	// Prune drops tokens created before the cutoff.
	Prune(ctx context.Context, before time.Time) (int, error)
}

type record struct {
	Kind      string     `json:"kind"`
	Key       string     `json:"key"`
	Chat      *ChatState `json:"chat,omitempty"`
	Token     string     `json:"token,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

const (
	kindChat  = "chat"
	kindToken = "token"
)

type tokenEntry struct {
	token     string
	createdAt time.Time
}
