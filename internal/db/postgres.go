package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/babyshield/crownsafe-backend/internal/domain"
	"github.com/babyshield/crownsafe-backend/internal/platform/envutil"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.String("POSTGRES_HOST", "localhost")
	port := envutil.String("POSTGRES_PORT", "5432")
	user := envutil.String("POSTGRES_USER", "postgres")
	password := envutil.String("POSTGRES_PASSWORD", "")
	name := envutil.String("POSTGRES_NAME", "crownsafe")
	sslmode := envutil.String("POSTGRES_SSLMODE", "disable")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)

	serviceLog.Info("Connecting to Postgres...", "host", host, "db", name)
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	s := &PostgresService{db: gormDB, log: serviceLog}
	if err := s.ensureExtensions(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresService) ensureExtensions() error {
	for _, ext := range []string{"uuid-ossp", "pg_trgm"} {
		if err := s.db.Exec(fmt.Sprintf(`CREATE EXTENSION IF NOT EXISTS %q;`, ext)).Error; err != nil {
			return fmt.Errorf("enable %s extension: %w", ext, err)
		}
	}
	s.log.Info("Postgres extensions enabled", "extensions", "uuid-ossp,pg_trgm")
	return nil
}

// AutoMigrateAll migrates the recall store schema and the supporting indexes.
// All DDL lives here; no other component issues schema statements.
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&domain.Recall{},
		&domain.RecallClusterMember{},
		&domain.IngestionRun{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := EnsureSearchIndexes(s.db); err != nil {
		return err
	}
	s.log.Info("Search and dedup indexes ensured")
	return nil
}

// EnsureSearchIndexes creates the trigram, composite, and partial-unique
// indexes AutoMigrate cannot express through struct tags.
func EnsureSearchIndexes(gdb *gorm.DB) error {
	stmts := []string{
		// Fuzzy text matching (typo-tolerant substring search).
		`CREATE INDEX IF NOT EXISTS idx_recall_product_name_trgm ON recall USING gin (lower(product_name) gin_trgm_ops);`,
		`CREATE INDEX IF NOT EXISTS idx_recall_brand_trgm ON recall USING gin (lower(brand) gin_trgm_ops);`,
		`CREATE INDEX IF NOT EXISTS idx_recall_description_trgm ON recall USING gin (lower(description) gin_trgm_ops);`,
		`CREATE INDEX IF NOT EXISTS idx_recall_hazard_trgm ON recall USING gin (lower(hazard) gin_trgm_ops);`,
		`CREATE INDEX IF NOT EXISTS idx_recall_search_keywords_trgm ON recall USING gin (search_keywords gin_trgm_ops);`,

		// Common filter combinations on the search path.
		`CREATE INDEX IF NOT EXISTS idx_recall_agency_date ON recall (source_agency, recall_date DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_recall_brand_model ON recall (brand, model_number);`,

		// One active (queued/running) ingestion run per agency.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_ingestion_run_active_agency ON ingestion_run (agency) WHERE status IN ('queued', 'running') AND deleted_at IS NULL;`,
	}
	for _, stmt := range stmts {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
