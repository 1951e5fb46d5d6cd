package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/babyshield/crownsafe-backend/internal/domain"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

// AgencyFreshness summarizes how current one agency's stored data is.
type AgencyFreshness struct {
	Agency        string     `json:"agency"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	RecallCount   int64      `json:"recall_count"`
}

type IngestionRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *domain.IngestionRun) (*domain.IngestionRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.IngestionRun, error)
	GetActiveByAgency(ctx context.Context, tx *gorm.DB, agency string) (*domain.IngestionRun, error)
	GetRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.IngestionRun, error)
	ClaimNextQueued(ctx context.Context, tx *gorm.DB) (*domain.IngestionRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	IncrementCounts(ctx context.Context, tx *gorm.DB, id uuid.UUID, inserted, updated, skipped, failed int) error
	LatestSuccessPerAgency(ctx context.Context, tx *gorm.DB) (map[string]time.Time, error)
}

type ingestionRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIngestionRunRepo(db *gorm.DB, baseLog *logger.Logger) IngestionRunRepo {
	return &ingestionRunRepo{db: db, log: baseLog.With("repo", "IngestionRunRepo")}
}

func (r *ingestionRunRepo) Create(ctx context.Context, tx *gorm.DB, run *domain.IngestionRun) (*domain.IngestionRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *ingestionRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.IngestionRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var run domain.IngestionRun
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *ingestionRunRepo) GetActiveByAgency(ctx context.Context, tx *gorm.DB, agency string) (*domain.IngestionRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if agency == "" {
		return nil, nil
	}
	var run domain.IngestionRun
	err := transaction.WithContext(ctx).
		Where("agency = ? AND status IN ?", agency, []string{domain.RunStatusQueued, domain.RunStatusRunning}).
		Order("created_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *ingestionRunRepo) GetRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.IngestionRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var out []*domain.IngestionRun
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimNextQueued picks the oldest queued run and marks it running, using
// SKIP LOCKED so concurrent workers never claim the same run.
func (r *ingestionRunRepo) ClaimNextQueued(ctx context.Context, tx *gorm.DB) (*domain.IngestionRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	var claimed *domain.IngestionRun
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var run domain.IngestionRun
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", domain.RunStatusQueued).
			Order("created_at ASC").
			First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&domain.IngestionRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":     domain.RunStatusRunning,
				"started_at": now,
				"updated_at": now,
			}).Error
		if uErr != nil {
			return uErr
		}
		run.Status = domain.RunStatusRunning
		run.StartedAt = &now
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *ingestionRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&domain.IngestionRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// IncrementCounts adds to the run counters. Counters never decrease.
func (r *ingestionRunRepo) IncrementCounts(ctx context.Context, tx *gorm.DB, id uuid.UUID, inserted, updated, skipped, failed int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	updates := map[string]interface{}{"updated_at": time.Now()}
	if inserted > 0 {
		updates["items_inserted"] = gorm.Expr("items_inserted + ?", inserted)
	}
	if updated > 0 {
		updates["items_updated"] = gorm.Expr("items_updated + ?", updated)
	}
	if skipped > 0 {
		updates["items_skipped"] = gorm.Expr("items_skipped + ?", skipped)
	}
	if failed > 0 {
		updates["items_failed"] = gorm.Expr("items_failed + ?", failed)
	}
	return transaction.WithContext(ctx).
		Model(&domain.IngestionRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *ingestionRunRepo) LatestSuccessPerAgency(ctx context.Context, tx *gorm.DB) (map[string]time.Time, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []struct {
		Agency     string
		FinishedAt time.Time
	}
	if err := transaction.WithContext(ctx).
		Model(&domain.IngestionRun{}).
		Select("agency, max(finished_at) AS finished_at").
		Where("status IN ? AND finished_at IS NOT NULL", []string{domain.RunStatusSuccess, domain.RunStatusPartial}).
		Group("agency").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		out[row.Agency] = row.FinishedAt
	}
	return out, nil
}
