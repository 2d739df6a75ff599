package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"weatherbot/app/config"
	"weatherbot/app/service/storage"

	"github.com/go-co-op/gocron"
	"github.com/samber/do"
)

var _ do.Shutdownable = (*Service)(nil)

const pruneTimeout = 30 * time.Second

type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

// Service periodically drops toggle tokens older than their TTL.
type Service struct {
	scheduler *gocron.Scheduler
	pruner    Pruner
	ttl       time.Duration
	interval  time.Duration
	now       func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	store := do.MustInvoke[storage.Store](di)

	return NewService(store, cfg.Storage.TokenTTL, cfg.Storage.PruneInterval), nil
}

func NewService(pruner Pruner, ttl, interval time.Duration) *Service {
	return &Service{
		scheduler: gocron.NewScheduler(time.UTC),
		pruner:    pruner,
		ttl:       ttl,
		interval:  interval,
		now:       time.Now,
	}
}

// Start runs the first prune right away and then every interval.
func (s *Service) Start() error {
	s.scheduler.SingletonModeAll()

	if _, err := s.scheduler.Every(s.interval).Do(s.prune); err != nil {
		return fmt.Errorf("failed to schedule prune job: %w", err)
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Service) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	removed, err := s.pruner.Prune(ctx, s.now().Add(-s.ttl))
	if err != nil {
		slog.Error("Failed to prune tokens", "error", err)
		return
	}

	if removed > 0 {
		slog.Info("Pruned expired tokens", "count", removed)
	}
}

func (s *Service) Shutdown() error {
	s.scheduler.Stop()
	return nil
}
