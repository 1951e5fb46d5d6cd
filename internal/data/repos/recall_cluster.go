package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/babyshield/crownsafe-backend/internal/domain"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

type RecallClusterRepo interface {
	UpsertMembers(ctx context.Context, tx *gorm.DB, members []*domain.RecallClusterMember) error
	GetByRecallIDs(ctx context.Context, tx *gorm.DB, recallIDs []uuid.UUID) ([]*domain.RecallClusterMember, error)
	GetByClusterIDs(ctx context.Context, tx *gorm.DB, clusterIDs []uuid.UUID) ([]*domain.RecallClusterMember, error)
}

type recallClusterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecallClusterRepo(db *gorm.DB, baseLog *logger.Logger) RecallClusterRepo {
	return &recallClusterRepo{db: db, log: baseLog.With("repo", "RecallClusterRepo")}
}

// UpsertMembers writes cluster membership for a dedup pass. A recall already
// linked elsewhere is moved into the new cluster (clusters can only grow or
// merge, never split, so the latest pass wins).
func (r *recallClusterRepo) UpsertMembers(ctx context.Context, tx *gorm.DB, members []*domain.RecallClusterMember) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(members) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "recall_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"cluster_id": gorm.Expr("excluded.cluster_id"),
				"is_primary": gorm.Expr("excluded.is_primary"),
				"updated_at": time.Now(),
			}),
		}).
		Create(&members).Error
}

func (r *recallClusterRepo) GetByRecallIDs(ctx context.Context, tx *gorm.DB, recallIDs []uuid.UUID) ([]*domain.RecallClusterMember, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*domain.RecallClusterMember
	if len(recallIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("recall_id IN ?", recallIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recallClusterRepo) GetByClusterIDs(ctx context.Context, tx *gorm.DB, clusterIDs []uuid.UUID) ([]*domain.RecallClusterMember, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*domain.RecallClusterMember
	if len(clusterIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("cluster_id IN ?", clusterIDs).
		Order("is_primary DESC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
