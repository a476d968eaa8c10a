package repository

import (
	"context"
	"errors"

	"frontdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeriesRepository allocates fiscal document numbers. Allocation MUST be
// serialized per series — a plain "read max + 1" from application code races
// under concurrent callers, so Next is a single atomic UPDATE … RETURNING
// that takes the row lock.
type SeriesRepository interface {
	// Resolve finds the series for (documentType, code), creating it on first use.
	Resolve(ctx context.Context, documentType, code string) (*model.Series, error)
	// Next returns the next correlative for the series. It runs on the base
	// connection, NOT inside any caller transaction: a number allocated for a
	// transaction that later aborts is still consumed. Numbers are never
	// reused; under N concurrent calls the results are exactly
	// {last+1 … last+N} with no duplicate and no gap.
	Next(ctx context.Context, seriesID uuid.UUID) (int64, error)
}

type seriesRepo struct{ db *gorm.DB }

func NewSeriesRepository(db *gorm.DB) SeriesRepository { return &seriesRepo{db: db} }

func (r *seriesRepo) Resolve(ctx context.Context, documentType, code string) (*model.Series, error) {
	var s model.Series
	err := r.db.WithContext(ctx).
		Where("document_type = ? AND code = ?", documentType, code).
		First(&s).Error
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	s = model.Series{DocumentType: documentType, Code: code}
	// Two first-time callers can race on creation: ON CONFLICT DO NOTHING then
	// re-read settles it.
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&s).Error; err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).
		Where("document_type = ? AND code = ?", documentType, code).
		First(&s).Error
	return &s, err
}

func (r *seriesRepo) Next(ctx context.Context, seriesID uuid.UUID) (int64, error) {
	var num int64
	err := r.db.WithContext(ctx).
		Raw("UPDATE series SET last_number = last_number + 1, updated_at = NOW() WHERE id = ? RETURNING last_number", seriesID).
		Scan(&num).Error
	if err != nil {
		return 0, err
	}
	if num == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return num, nil
}
