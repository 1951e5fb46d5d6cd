package app

import (
	"gorm.io/gorm"

	"github.com/babyshield/crownsafe-backend/internal/data/repos"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

type Repos struct {
	Recall        repos.RecallRepo
	RecallCluster repos.RecallClusterRepo
	IngestionRun  repos.IngestionRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Recall:        repos.NewRecallRepo(db, log),
		RecallCluster: repos.NewRecallClusterRepo(db, log),
		IngestionRun:  repos.NewIngestionRunRepo(db, log),
	}
}
