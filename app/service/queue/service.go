package queue

import (
	"log/slog"
	"sync"

	"github.com/samber/do"
)

const bufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

// Event is one inbound chat update: a text message, a command or a button
// click.
type Event struct {
	ChatID    int64
	MessageID int
	User      User

	Text    string
	Command string

	CallbackID   string
	CallbackData string
}

type User struct {
	ID        int64
	FirstName string
	Username  string
}

func (e Event) IsCallback() bool {
	return e.CallbackID != ""
}

type Service struct {
	queue chan Event

	mu     sync.Mutex
	closed bool
}

func New(_ *do.Injector) (*Service, error) {
	return &Service{
		queue: make(chan Event, bufferSize),
	}, nil
}

// Add never blocks; events are dropped when the buffer is full.
func (s *Service) Add(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.queue <- event:
		return true
	default:
		slog.Warn("event queue is full", "chat_id", event.ChatID)
		return false
	}
}

func (s *Service) Channel() <-chan Event {
	return s.queue
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}

	return nil
}
