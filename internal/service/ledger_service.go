package service

import (
	"context"
	"fmt"

	"frontdesk/internal/apierror"
	"frontdesk/internal/dto"
	"frontdesk/internal/model"
	"frontdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LedgerService interface {
	// RecordMovement records a manual IN/OUT entry on an open shift.
	RecordMovement(ctx context.Context, operatorID uuid.UUID, req dto.RecordMovementRequest) (*dto.MovementResponse, error)
	// BalanceAsOf returns Σ(in) − Σ(out) for the shift in one currency,
	// reflecting all movements committed before the call.
	BalanceAsOf(ctx context.Context, shiftID uuid.UUID, currency string) (decimal.Decimal, error)
	BalancesByCurrency(ctx context.Context, shiftID uuid.UUID) (map[string]decimal.Decimal, error)
	ListMovements(ctx context.Context, shiftID uuid.UUID) ([]model.Movement, error)

	// Tx entry points used only by the issuance coordinator and credit-note
	// issuer — not independently retried; idempotency is enforced one level up.
	RecordPaymentMovementTx(tx *gorm.DB, shiftID, operatorID uuid.UUID, amount decimal.Decimal, currency string, paymentID uuid.UUID, description string) error
	RecordRefundMovementTx(tx *gorm.DB, shiftID, operatorID uuid.UUID, amount decimal.Decimal, currency string, documentID uuid.UUID, description string) error
}

type ledgerService struct {
	repo      repository.LedgerRepository
	shiftRepo repository.ShiftRepository
}

func NewLedgerService(repo repository.LedgerRepository, shiftRepo repository.ShiftRepository) LedgerService {
	return &ledgerService{repo: repo, shiftRepo: shiftRepo}
}

func (s *ledgerService) RecordMovement(ctx context.Context, operatorID uuid.UUID, req dto.RecordMovementRequest) (*dto.MovementResponse, error) {
	shiftID, err := uuid.Parse(req.ShiftID)
	if err != nil {
		return nil, apierror.Validationf("invalid shift_id: %v", err)
	}
	if !req.Amount.IsPositive() {
		return nil, apierror.Validationf("movement amount must be positive, got %s", req.Amount)
	}

	shift, err := s.shiftRepo.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apierror.Validationf("shift not found")
	}
	if shift.Status != model.ShiftOpen {
		return nil, apierror.Statef(shift.Status, "cannot record a movement on a %s shift", shift.Status)
	}

	mov := &model.Movement{
		ShiftID:    shiftID,
		Kind:       model.MovementManual,
		Direction:  req.Direction,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Category:   req.Category,
		Reason:     req.Reason,
		OperatorID: operatorID,
	}
	if err := s.repo.CreateMovement(ctx, mov); err != nil {
		return nil, err
	}
	return movementToResponse(mov), nil
}

func (s *ledgerService) BalanceAsOf(ctx context.Context, shiftID uuid.UUID, currency string) (decimal.Decimal, error) {
	sums, err := s.repo.SumByCurrency(ctx, shiftID)
	if err != nil {
		return decimal.Zero, err
	}
	return sums[currency], nil
}

func (s *ledgerService) BalancesByCurrency(ctx context.Context, shiftID uuid.UUID) (map[string]decimal.Decimal, error) {
	return s.repo.SumByCurrency(ctx, shiftID)
}

func (s *ledgerService) ListMovements(ctx context.Context, shiftID uuid.UUID) ([]model.Movement, error) {
	return s.repo.ListMovements(ctx, shiftID)
}

func (s *ledgerService) RecordPaymentMovementTx(tx *gorm.DB, shiftID, operatorID uuid.UUID, amount decimal.Decimal, currency string, paymentID uuid.UUID, description string) error {
	ref := paymentID
	return s.repo.CreateMovementTx(tx, &model.Movement{
		ShiftID:     shiftID,
		Kind:        model.MovementPayment,
		Direction:   model.DirectionIn,
		Amount:      amount,
		Currency:    currency,
		Category:    "payment",
		Reason:      description,
		OperatorID:  operatorID,
		ReferenceID: &ref,
	})
}

func (s *ledgerService) RecordRefundMovementTx(tx *gorm.DB, shiftID, operatorID uuid.UUID, amount decimal.Decimal, currency string, documentID uuid.UUID, description string) error {
	ref := documentID
	return s.repo.CreateMovementTx(tx, &model.Movement{
		ShiftID:     shiftID,
		Kind:        model.MovementRefund,
		Direction:   model.DirectionOut,
		Amount:      amount,
		Currency:    currency,
		Category:    "refund",
		Reason:      description,
		OperatorID:  operatorID,
		ReferenceID: &ref,
	})
}

func movementToResponse(m *model.Movement) *dto.MovementResponse {
	return &dto.MovementResponse{
		ID:        m.ID.String(),
		Kind:      m.Kind,
		Direction: m.Direction,
		Amount:    m.Amount,
		Currency:  m.Currency,
		Category:  m.Category,
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// paymentDescription builds the ledger reason line for an issued document.
func paymentDescription(series string, number int64) string {
	return fmt.Sprintf("Payment for document %s-%d", series, number)
}
