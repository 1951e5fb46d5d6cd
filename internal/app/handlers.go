package app

import (
	"gorm.io/gorm"

	"github.com/babyshield/crownsafe-backend/internal/http/handlers"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

type Handlers struct {
	Search *handlers.SearchHandler
	Recall *handlers.RecallHandler
	Agency *handlers.AgencyHandler
	Admin  *handlers.AdminHandler
	Health *handlers.HealthHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, reposet Repos, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Search: handlers.NewSearchHandler(serviceset.Search),
		Recall: handlers.NewRecallHandler(serviceset.Search),
		Agency: handlers.NewAgencyHandler(reposet.Recall, serviceset.Cache, log),
		Admin:  handlers.NewAdminHandler(serviceset.Orchestrator, serviceset.Registry, reposet.IngestionRun, reposet.Recall, serviceset.Cache, log),
		Health: handlers.NewHealthHandler(db),
	}
}
