package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"weatherbot/app/client/telegram"
	"weatherbot/app/service/conversation"
	"weatherbot/app/service/queue"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

var ErrPollerStopped = errors.New("poller stopped")

// Handler processes a single chat event.
type Handler interface {
	Handle(ctx context.Context, event queue.Event) error
}

// Poller delivers incoming events to the registered listener until ctx is
// done.
type Poller interface {
	SetListener(handler telegram.EventHandler)
	Run(ctx context.Context) error
}

type Service struct {
	poller   Poller
	handler  Handler
	queueSvc *queue.Service
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*telegram.Client](di),
		do.MustInvoke[*conversation.Service](di),
		do.MustInvoke[*queue.Service](di),
	), nil
}

func NewService(poller Poller, handler Handler, queueSvc *queue.Service) *Service {
	return &Service{
		poller:   poller,
		handler:  handler,
		queueSvc: queueSvc,
	}
}

// Run polls for events and handles them one at a time until ctx is done.
// Events of a single chat are therefore never processed concurrently.
func (s *Service) Run(ctx context.Context) error {
	s.poller.SetListener(func(event queue.Event) {
		s.queueSvc.Add(event)
	})

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := s.poller.Run(groupCtx); err != nil {
			return err
		}
		if groupCtx.Err() == nil {
			return ErrPollerStopped
		}
		return nil
	})

	group.Go(func() error {
		s.consume(groupCtx)
		return nil
	})

	return group.Wait()
}

func (s *Service) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.queueSvc.Channel():
			if !ok {
				return
			}

			start := time.Now()
			if err := s.handler.Handle(ctx, event); err != nil {
				slog.Error("Failed to handle event",
					"chat_id", event.ChatID,
					"callback", event.IsCallback(),
					"error", err,
				)
				continue
			}

			slog.Debug("Processed event",
				"chat_id", event.ChatID,
				"callback", event.IsCallback(),
				"duration", time.Since(start),
			)
		}
	}
}
