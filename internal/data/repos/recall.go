package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/babyshield/crownsafe-backend/internal/domain"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

type RecallRepo interface {
	Create(ctx context.Context, tx *gorm.DB, recalls []*domain.Recall) ([]*domain.Recall, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*domain.Recall, error)
	GetByAgencyAndRecallIDs(ctx context.Context, tx *gorm.DB, agency string, recallIDs []string) ([]*domain.Recall, error)
	FindDedupeCandidates(ctx context.Context, tx *gorm.DB, from, to time.Time, identifiers []string) ([]*domain.Recall, error)
	FindByBarcode(ctx context.Context, tx *gorm.DB, code string) ([]*domain.Recall, error)
	CountByAgency(ctx context.Context, tx *gorm.DB) (map[string]int64, error)
}

type recallRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecallRepo(db *gorm.DB, baseLog *logger.Logger) RecallRepo {
	return &recallRepo{db: db, log: baseLog.With("repo", "RecallRepo")}
}

func (r *recallRepo) Create(ctx context.Context, tx *gorm.DB, recalls []*domain.Recall) ([]*domain.Recall, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(recalls) == 0 {
		return []*domain.Recall{}, nil
	}
	const batchSize = 200
	if err := transaction.WithContext(ctx).CreateInBatches(recalls, batchSize).Error; err != nil {
		return nil, err
	}
	return recalls, nil
}

func (r *recallRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&domain.Recall{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *recallRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*domain.Recall, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*domain.Recall
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recallRepo) GetByAgencyAndRecallIDs(ctx context.Context, tx *gorm.DB, agency string, recallIDs []string) ([]*domain.Recall, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*domain.Recall
	if agency == "" || len(recallIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("source_agency = ? AND recall_id IN ?", agency, recallIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindDedupeCandidates loads the existing rows a new batch must be clustered
// against: anything recalled inside the date window, plus anything sharing an
// identifier regardless of date.
func (r *recallRepo) FindDedupeCandidates(ctx context.Context, tx *gorm.DB, from, to time.Time, identifiers []string) ([]*domain.Recall, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	const candidateCap = 5000

	q := transaction.WithContext(ctx).Model(&domain.Recall{})
	if len(identifiers) > 0 {
		q = q.Where(
			"(recall_date BETWEEN ? AND ?) OR upc IN ? OR ean_code IN ? OR gtin IN ? OR lot_number IN ?",
			from, to, identifiers, identifiers, identifiers, identifiers,
		)
	} else {
		q = q.Where("recall_date BETWEEN ? AND ?", from, to)
	}

	var out []*domain.Recall
	if err := q.Order("recall_date DESC").Limit(candidateCap).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recallRepo) FindByBarcode(ctx context.Context, tx *gorm.DB, code string) ([]*domain.Recall, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*domain.Recall
	if code == "" {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("upc = ? OR ean_code = ? OR gtin = ?", code, code, code).
		Order("recall_date DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recallRepo) CountByAgency(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []struct {
		SourceAgency string
		N            int64
	}
	if err := transaction.WithContext(ctx).
		Model(&domain.Recall{}).
		Select("source_agency, count(*) AS n").
		Group("source_agency").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.SourceAgency] = row.N
	}
	return out, nil
}
