package repository

import (
	"context"

	"frontdesk/internal/model"

	"gorm.io/gorm"
)

// IdempotencyRepository stores issuance outcomes keyed by caller token.
// Records are written inside the issuance transaction and never updated.
type IdempotencyRepository interface {
	Find(ctx context.Context, key string) (*model.IdempotencyRecord, error)
	CreateTx(tx *gorm.DB, rec *model.IdempotencyRecord) error
}

type idempotencyRepo struct{ db *gorm.DB }

func NewIdempotencyRepository(db *gorm.DB) IdempotencyRepository {
	return &idempotencyRepo{db: db}
}

func (r *idempotencyRepo) Find(ctx context.Context, key string) (*model.IdempotencyRecord, error) {
	var rec model.IdempotencyRecord
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	return &rec, err
}

func (r *idempotencyRepo) CreateTx(tx *gorm.DB, rec *model.IdempotencyRecord) error {
	return tx.Create(rec).Error
}
