package utils

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/english-mastery/backend/logger"
)

// StaleMaterialStore is the part of the material lifecycle the sweeper needs.
type StaleMaterialStore interface {
	FailStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error)
	StalePending(ctx context.Context, olderThan time.Duration) ([]uint, error)
	Schedule(ctx context.Context, materialID uint)
}

// MaterialSweeper periodically repairs materials a crash or restart left
// behind: stuck processing rows are failed, forgotten pending rows are
// scheduled again.
type MaterialSweeper struct {
	store      StaleMaterialStore
	staleAfter time.Duration
	interval   time.Duration
	scheduler  *gocron.Scheduler
	log        *logger.Logger
}

func NewMaterialSweeper(store StaleMaterialStore, staleAfter, interval time.Duration, log *logger.Logger) *MaterialSweeper {
	return &MaterialSweeper{
		store:      store,
		staleAfter: staleAfter,
		interval:   interval,
		scheduler:  gocron.NewScheduler(time.UTC),
		log:        log.With("component", "MaterialSweeper"),
	}
}

// Sweep runs one pass.
func (s *MaterialSweeper) Sweep(ctx context.Context) {
	failed, err := s.store.FailStaleProcessing(ctx, s.staleAfter)
	if err != nil {
		s.log.Error("failing stale processing materials", "error", err)
	} else if failed > 0 {
		s.log.Warn("marked stale processing materials as failed", "count", failed)
	}

	ids, err := s.store.StalePending(ctx, s.staleAfter)
	if err != nil {
		s.log.Error("listing stale pending materials", "error", err)
		return
	}
	for _, id := range ids {
		s.store.Schedule(ctx, id)
	}
	if len(ids) > 0 {
		s.log.Info("rescheduled stale pending materials", "count", len(ids))
	}
}

// Start runs a first sweep immediately, then every interval.
func (s *MaterialSweeper) Start(ctx context.Context) error {
	if _, err := s.scheduler.Every(s.interval).StartImmediately().Do(s.Sweep, ctx); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.log.Info("material sweeper started", "interval", s.interval, "stale_after", s.staleAfter)
	return nil
}

func (s *MaterialSweeper) Stop() {
	s.scheduler.Stop()
}
