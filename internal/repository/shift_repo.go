package repository

import (
	"context"

	"frontdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShiftRepository interface {
	// CreateShift persists the shift and its opening totals. The partial
	// unique index on (register_id) WHERE status='open' turns a lost race
	// into a unique-violation error.
	CreateShift(ctx context.Context, s *model.Shift) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	FindOpenByRegister(ctx context.Context, registerID uuid.UUID) (*model.Shift, error)
	CloseTx(tx *gorm.DB, s *model.Shift) error
	UpdateTotalTx(tx *gorm.DB, t *model.ShiftTotal) error
	ListClosed(ctx context.Context, page, limit int) ([]model.Shift, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in the service layer
}

type shiftRepo struct{ db *gorm.DB }

func NewShiftRepository(db *gorm.DB) ShiftRepository { return &shiftRepo{db: db} }

func (r *shiftRepo) DB() *gorm.DB { return r.db }

func (r *shiftRepo) CreateShift(ctx context.Context, s *model.Shift) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *shiftRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).Preload("Totals").Preload("Movements").First(&s, id).Error
	return &s, err
}

func (r *shiftRepo) FindOpenByRegister(ctx context.Context, registerID uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).Preload("Totals").
		Where("register_id = ? AND status = ?", registerID, model.ShiftOpen).
		First(&s).Error
	return &s, err
}

func (r *shiftRepo) CloseTx(tx *gorm.DB, s *model.Shift) error {
	return tx.Save(s).Error
}

func (r *shiftRepo) UpdateTotalTx(tx *gorm.DB, t *model.ShiftTotal) error {
	return tx.Save(t).Error
}

func (r *shiftRepo) ListClosed(ctx context.Context, page, limit int) ([]model.Shift, int64, error) {
	var shifts []model.Shift
	var total int64
	q := r.db.WithContext(ctx).Model(&model.Shift{}).Where("status = ?", model.ShiftClosed)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Totals").
		Order("closed_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&shifts).Error
	return shifts, total, err
}
