package app

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically closes rooms that have been idle longer than idleTimeout.
type Sweeper struct {
	registry    *Registry
	interval    time.Duration
	idleTimeout time.Duration
	log         *slog.Logger
}

func NewSweeper(registry *Registry, interval, idleTimeout time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = idleTimeout / 2
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{registry: registry, interval: interval, idleTimeout: idleTimeout, log: log}
}

// Run blocks until ctx is done. A non-positive idle timeout disables sweeping.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.idleTimeout <= 0 || s.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if closed := s.registry.SweepIdle(ctx, s.idleTimeout); len(closed) > 0 {
				s.log.Info("idle rooms closed", "count", len(closed), "rooms", closed)
			}
		}
	}
}
