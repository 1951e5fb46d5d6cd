package ingest

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

// Scheduler queues a delta run for every registered agency on a cron
// schedule. Agencies whose slot is already held are left alone; the active
// run will pick the records up.
type Scheduler struct {
	cron         *cron.Cron
	log          *logger.Logger
	orchestrator *Orchestrator
	registry     *Registry
	spec         string
}

func NewScheduler(baseLog *logger.Logger, orchestrator *Orchestrator, registry *Registry, spec string) *Scheduler {
	if spec == "" {
		spec = "0 */6 * * *"
	}
	return &Scheduler{
		cron:         cron.New(),
		log:          baseLog.With("component", "IngestScheduler"),
		orchestrator: orchestrator,
		registry:     registry,
		spec:         spec,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() { s.queueAll(ctx) })
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("Scheduler started", "spec", s.spec, "agencies", s.registry.Agencies())
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
	return nil
}

func (s *Scheduler) queueAll(ctx context.Context) {
	for _, agency := range s.registry.Agencies() {
		_, err := s.orchestrator.StartRun(ctx, agency, "delta")
		switch {
		case err == nil:
		case errors.Is(err, ErrRunActive):
			s.log.Info("Skipping scheduled run, agency slot busy", "agency", agency)
		default:
			s.log.Warn("Failed to queue scheduled run", "agency", agency, "error", err)
		}
	}
}
