package repository

import (
	"context"

	"frontdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	CreateTx(tx *gorm.DB, p *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindByDocumentID(ctx context.Context, documentID uuid.UUID) (*model.Payment, error)
	ListByShift(ctx context.Context, shiftID uuid.UUID) ([]model.Payment, error)
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) CreateTx(tx *gorm.DB, p *model.Payment) error {
	return tx.Create(p).Error
}

func (r *paymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).First(&p, id).Error
	return &p, err
}

func (r *paymentRepo) FindByDocumentID(ctx context.Context, documentID uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&p).Error
	return &p, err
}

func (r *paymentRepo) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).Where("shift_id = ?", shiftID).Order("created_at ASC").Find(&payments).Error
	return payments, err
}
