package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/davidnajera/mentiondesk-backend/internal/mentions"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
)

const defaultInterval = time.Minute

// ServiceParams configure the recovery worker.
type ServiceParams struct {
	Logger   *logger.Logger
	Engine   *mentions.Service
	Lock     Lock
	Interval time.Duration
}

// Service sweeps the task recovery windows on a fixed cadence, holding a
// lock so only one worker instance sweeps at a time.
type Service struct {
	logg     *logger.Logger
	engine   *mentions.Service
	lock     Lock
	interval time.Duration
}

// NewService builds the recovery worker.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("mention engine required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		engine:   params.Engine,
		lock:     params.Lock,
		interval: interval,
	}, nil
}

// Run starts the sweep loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "recovery sweep failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "recovery worker context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "recovery sweep failed", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another recovery instance is sweeping; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release recovery lock", relErr)
		}
	}()

	s.logg.Info(ctx, "recovery sweep starting")
	if err := s.engine.RecoverReplyTasks(ctx); err != nil {
		s.logg.Error(ctx, "reply recovery failed", err)
	}
	if err := s.engine.RecoverFetchTasks(ctx); err != nil {
		s.logg.Error(ctx, "fetch recovery failed", err)
	}
	s.logg.Info(ctx, "recovery sweep complete")
	return nil
}
