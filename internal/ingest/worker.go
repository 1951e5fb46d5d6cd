package ingest

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/babyshield/crownsafe-backend/internal/data/repos"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

// Worker drains the queued-run table. Multiple instances can run at once;
// SKIP LOCKED claiming keeps them from executing the same run.
type Worker struct {
	db           *gorm.DB
	log          *logger.Logger
	runs         repos.IngestionRunRepo
	orchestrator *Orchestrator
	pollEvery    time.Duration
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, runs repos.IngestionRunRepo, orchestrator *Orchestrator, pollEvery time.Duration) *Worker {
	if pollEvery <= 0 {
		pollEvery = 2 * time.Second
	}
	return &Worker{
		db:           db,
		log:          baseLog.With("component", "IngestWorker"),
		runs:         runs,
		orchestrator: orchestrator,
		pollEvery:    pollEvery,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.pollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run, err := w.runs.ClaimNextQueued(ctx, w.db)
				if err != nil {
					w.log.Warn("ClaimNextQueued failed", "error", err)
					continue
				}
				if run == nil {
					continue
				}
				// a panicking connector or pipeline must not kill the worker
				func() {
					defer func() {
						if r := recover(); r != nil {
							w.log.Error("Pipeline panic", "run_id", run.ID, "agency", run.Agency, "panic", r)
							w.orchestrator.finishRun(run.ID, "failed", fmt.Sprintf("panic: %v", r))
						}
					}()
					_ = w.orchestrator.Execute(ctx, run)
				}()
			}
		}
	}()
}
