package repository

import (
	"context"

	"frontdesk/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerRepository is the append-only movement store. There is deliberately
// no Update or Delete: corrections are offsetting entries.
type LedgerRepository interface {
	CreateMovement(ctx context.Context, m *model.Movement) error
	CreateMovementTx(tx *gorm.DB, m *model.Movement) error
	ListMovements(ctx context.Context, shiftID uuid.UUID) ([]model.Movement, error)
	// SumByCurrency returns Σ(in) − Σ(out) per currency for the shift.
	SumByCurrency(ctx context.Context, shiftID uuid.UUID) (map[string]decimal.Decimal, error)
}

type ledgerRepo struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepo{db: db} }

func (r *ledgerRepo) CreateMovement(ctx context.Context, m *model.Movement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *ledgerRepo) CreateMovementTx(tx *gorm.DB, m *model.Movement) error {
	return tx.Create(m).Error
}

func (r *ledgerRepo) ListMovements(ctx context.Context, shiftID uuid.UUID) ([]model.Movement, error) {
	var movs []model.Movement
	err := r.db.WithContext(ctx).
		Where("shift_id = ?", shiftID).
		Order("created_at ASC").
		Find(&movs).Error
	return movs, err
}

func (r *ledgerRepo) SumByCurrency(ctx context.Context, shiftID uuid.UUID) (map[string]decimal.Decimal, error) {
	type row struct {
		Currency string
		Total    decimal.Decimal
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.Movement{}).
		Select("currency, COALESCE(SUM(CASE WHEN direction = 'in' THEN amount ELSE -amount END), 0) AS total").
		Where("shift_id = ?", shiftID).
		Group("currency").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		sums[r.Currency] = r.Total
	}
	return sums, nil
}
