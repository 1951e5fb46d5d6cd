package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/babyshield/crownsafe-backend/internal/cache"
	"github.com/babyshield/crownsafe-backend/internal/dedupe"
	"github.com/babyshield/crownsafe-backend/internal/ingest"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
	"github.com/babyshield/crownsafe-backend/internal/search"
)

type Services struct {
	Cache        *cache.Cache
	Registry     *ingest.Registry
	Orchestrator *ingest.Orchestrator
	Worker       *ingest.Worker
	Scheduler    *ingest.Scheduler
	Search       *search.Service
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	redisCache, err := cache.New(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		return Services{}, err
	}

	registry := ingest.NewRegistry()
	registry.Register(ingest.NewCPSCConnector(cfg.CPSCBaseURL, nil, log))
	registry.Register(ingest.NewFDAConnector(cfg.FDABaseURL, cfg.FDAAPIKey, nil, log))
	registry.Register(ingest.NewHealthCanadaConnector(cfg.HealthCanadaBaseURL, nil, log))
	if cfg.FixturePath != "" {
		registry.Register(ingest.NewFixtureConnector("FIXTURE", cfg.FixturePath))
	}

	engine := dedupe.NewEngine(dedupe.Config{
		SimilarityThreshold: cfg.DedupeSimilarityThreshold,
		DateWindow:          cfg.DedupeDateWindow,
	}, log)

	orchestrator := ingest.NewOrchestrator(
		db, log,
		reposet.Recall, reposet.RecallCluster, reposet.IngestionRun,
		registry, ingest.NewNormalizer(log), engine, cfg.DedupeDateWindow,
	)

	worker := ingest.NewWorker(db, log, reposet.IngestionRun, orchestrator, cfg.WorkerPollInterval)

	var scheduler *ingest.Scheduler
	if cfg.SchedulerEnabled {
		scheduler = ingest.NewScheduler(log, orchestrator, registry, cfg.ScheduleSpec)
	}

	searchSvc := search.NewService(db, log, reposet.Recall, reposet.RecallCluster, redisCache, search.Config{
		MinSimilarity: cfg.SearchMinSimilarity,
		CacheTTL:      cfg.SearchCacheTTL,
	})

	return Services{
		Cache:        redisCache,
		Registry:     registry,
		Orchestrator: orchestrator,
		Worker:       worker,
		Scheduler:    scheduler,
		Search:       searchSvc,
	}, nil
}
