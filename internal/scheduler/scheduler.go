package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/services"
	"github.com/skylerye/yuquesync-backend/internal/utils"
)

// Scheduler owns the periodic full-sync job. One explicit cron instance,
// one entry; overlapping runs are skipped rather than queued.
type Scheduler struct {
	log     *logger.Logger
	cron    *cron.Cron
	sync    services.SyncService
	spec    string
	running atomic.Bool
}

func New(log *logger.Logger, syncSvc services.SyncService) *Scheduler {
	spec := utils.GetEnv("SYNC_CRON_SPEC", "0 3 * * *", log)
	return &Scheduler{
		log:  log.With("service", "Scheduler"),
		cron: cron.New(),
		sync: syncSvc,
		spec: spec,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runFullSync); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("Scheduler started", "spec", s.spec)
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) runFullSync() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("Previous full sync still running, skipping this tick")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	report, err := s.sync.SyncAll(context.Background())
	if err != nil {
		s.log.Error("Scheduled full sync failed", "error", err)
		return
	}
	s.log.Info("Scheduled full sync complete",
		"repos", len(report.Repos),
		"failed", len(report.Failed()),
		"elapsed", time.Since(start).String(),
	)
}
