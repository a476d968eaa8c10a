package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"frontdesk/internal/apierror"
	"frontdesk/internal/dto"
	"frontdesk/internal/model"
	"frontdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ShiftService interface {
	Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenShiftRequest) (*dto.ShiftReportResponse, error)
	GetOpen(ctx context.Context, registerID uuid.UUID) (*dto.ShiftReportResponse, error)
	Close(ctx context.Context, operatorID uuid.UUID, req dto.CloseShiftRequest) (*dto.CloseShiftResponse, error)
	Report(ctx context.Context, shiftID uuid.UUID) (*dto.ShiftReportResponse, error)
	History(ctx context.Context, page, limit int) ([]dto.ShiftListItem, int64, error)
}

type shiftService struct {
	repo         repository.ShiftRepository
	registerRepo repository.RegisterRepository
	ledgerRepo   repository.LedgerRepository
	engine       *ReconciliationEngine
}

func NewShiftService(repo repository.ShiftRepository, registerRepo repository.RegisterRepository, ledgerRepo repository.LedgerRepository, engine *ReconciliationEngine) ShiftService {
	return &shiftService{repo: repo, registerRepo: registerRepo, ledgerRepo: ledgerRepo, engine: engine}
}

func (s *shiftService) Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenShiftRequest) (*dto.ShiftReportResponse, error) {
	registerID, err := uuid.Parse(req.RegisterID)
	if err != nil {
		return nil, apierror.Validationf("invalid register_id: %v", err)
	}
	for currency, amount := range req.OpeningAmounts {
		if len(currency) != 3 {
			return nil, apierror.Validationf("invalid currency code %q", currency)
		}
		if amount.IsNegative() {
			return nil, apierror.Validationf("opening amount for %s must not be negative", currency)
		}
	}

	register, err := s.registerRepo.FindByID(ctx, registerID)
	if err != nil {
		return nil, apierror.Validationf("register not found")
	}
	if !register.Active {
		return nil, apierror.Validationf("register %s is inactive", register.Name)
	}

	// Pre-check for a friendly error; the partial unique index catches races.
	if existing, err := s.repo.FindOpenByRegister(ctx, registerID); err == nil {
		return nil, apierror.Conflictf("register already has an open shift (%s)", existing.ID)
	}

	shift := &model.Shift{
		RegisterID: registerID,
		OperatorID: operatorID,
		Status:     model.ShiftOpen,
		OpenedAt:   time.Now().UTC(),
	}
	for currency, amount := range req.OpeningAmounts {
		shift.Totals = append(shift.Totals, model.ShiftTotal{
			Currency: currency,
			Opening:  amount,
		})
	}

	if err := s.repo.CreateShift(ctx, shift); err != nil {
		if strings.Contains(err.Error(), "uni_shifts_open_register") {
			return nil, apierror.Conflictf("register already has an open shift")
		}
		return nil, err
	}

	log.Info().
		Str("shift_id", shift.ID.String()).
		Str("register_id", registerID.String()).
		Str("operator_id", operatorID.String()).
		Msg("shift opened")

	return s.buildReport(ctx, shift)
}

func (s *shiftService) GetOpen(ctx context.Context, registerID uuid.UUID) (*dto.ShiftReportResponse, error) {
	shift, err := s.repo.FindOpenByRegister(ctx, registerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.Validationf("no open shift for register %s", registerID)
		}
		return nil, err
	}
	return s.buildReport(ctx, shift)
}

// Close performs the blind reconciliation: expected per-currency amounts are
// computed only after the operator's declaration arrives in the request.
func (s *shiftService) Close(ctx context.Context, operatorID uuid.UUID, req dto.CloseShiftRequest) (*dto.CloseShiftResponse, error) {
	shiftID, err := uuid.Parse(req.ShiftID)
	if err != nil {
		return nil, apierror.Validationf("invalid shift_id: %v", err)
	}
	for currency, amount := range req.DeclaredAmounts {
		if len(currency) != 3 {
			return nil, apierror.Validationf("invalid currency code %q", currency)
		}
		if amount.IsNegative() {
			return nil, apierror.Validationf("declared amount for %s must not be negative", currency)
		}
	}

	shift, err := s.repo.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apierror.Validationf("shift not found")
	}
	if shift.Status != model.ShiftOpen {
		return nil, apierror.Statef(shift.Status, "shift is already %s", shift.Status)
	}

	balances, err := s.ledgerRepo.SumByCurrency(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	openings := make(map[string]decimal.Decimal, len(shift.Totals))
	totalByCurrency := make(map[string]*model.ShiftTotal, len(shift.Totals))
	for i := range shift.Totals {
		t := &shift.Totals[i]
		openings[t.Currency] = t.Opening
		totalByCurrency[t.Currency] = t
	}

	results := s.engine.Reconcile(openings, balances, req.DeclaredAmounts)

	now := time.Now().UTC()
	shift.Status = model.ShiftClosed
	shift.ClosedAt = &now
	if req.Note != nil {
		shift.Note = req.Note
	}
	if len(req.Breakdown) > 0 {
		raw, err := json.Marshal(req.Breakdown)
		if err == nil {
			b := string(raw)
			shift.Breakdown = &b
		}
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		for _, r := range results {
			expected, declared, variance, classification := r.Expected, r.Declared, r.Variance, r.Classification
			total, ok := totalByCurrency[r.Currency]
			if !ok {
				// currency appeared only in movements or the declaration
				total = &model.ShiftTotal{
					ShiftID:  shift.ID,
					Currency: r.Currency,
					Opening:  decimal.Zero,
				}
			}
			total.Expected = &expected
			total.Declared = &declared
			total.Variance = &variance
			total.Classification = &classification
			if err := s.repo.UpdateTotalTx(tx, total); err != nil {
				return err
			}
		}
		shift.Totals = nil // avoid GORM re-saving associations on the shift row
		shift.Movements = nil
		return s.repo.CloseTx(tx, shift)
	})
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Classification != model.VarianceExact {
			log.Warn().
				Str("shift_id", shift.ID.String()).
				Str("currency", r.Currency).
				Str("variance", r.Variance.String()).
				Str("classification", r.Classification).
				Msg("shift closed with variance")
		}
	}
	log.Info().Str("shift_id", shift.ID.String()).Msg("shift closed")

	return &dto.CloseShiftResponse{
		ShiftID:        shift.ID.String(),
		Status:         shift.Status,
		Reconciliation: results,
		ClosedAt:       now.Format(time.RFC3339),
	}, nil
}

func (s *shiftService) Report(ctx context.Context, shiftID uuid.UUID) (*dto.ShiftReportResponse, error) {
	shift, err := s.repo.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apierror.Validationf("shift not found")
	}
	return s.buildReport(ctx, shift)
}

func (s *shiftService) History(ctx context.Context, page, limit int) ([]dto.ShiftListItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	shifts, total, err := s.repo.ListClosed(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	items := make([]dto.ShiftListItem, 0, len(shifts))
	for _, sh := range shifts {
		item := dto.ShiftListItem{
			ShiftID:    sh.ID.String(),
			RegisterID: sh.RegisterID.String(),
			OperatorID: sh.OperatorID.String(),
			Status:     sh.Status,
			OpenedAt:   sh.OpenedAt.Format(time.RFC3339),
		}
		if sh.ClosedAt != nil {
			closed := sh.ClosedAt.Format(time.RFC3339)
			item.ClosedAt = &closed
		}
		items = append(items, item)
	}
	return items, total, nil
}

func (s *shiftService) buildReport(ctx context.Context, shift *model.Shift) (*dto.ShiftReportResponse, error) {
	balances, err := s.ledgerRepo.SumByCurrency(ctx, shift.ID)
	if err != nil {
		return nil, err
	}
	movements, err := s.ledgerRepo.ListMovements(ctx, shift.ID)
	if err != nil {
		return nil, err
	}

	openings := make(map[string]decimal.Decimal, len(shift.Totals))
	var reconciliation []dto.CurrencyVariance
	for _, t := range shift.Totals {
		openings[t.Currency] = t.Opening
		if t.Expected != nil && t.Declared != nil && t.Variance != nil && t.Classification != nil {
			reconciliation = append(reconciliation, dto.CurrencyVariance{
				Currency:       t.Currency,
				Expected:       *t.Expected,
				Declared:       *t.Declared,
				Variance:       *t.Variance,
				Classification: *t.Classification,
			})
		}
	}

	movResponses := make([]dto.MovementResponse, 0, len(movements))
	for i := range movements {
		movResponses = append(movResponses, *movementToResponse(&movements[i]))
	}

	resp := &dto.ShiftReportResponse{
		ShiftID:        shift.ID.String(),
		RegisterID:     shift.RegisterID.String(),
		OperatorID:     shift.OperatorID.String(),
		Status:         shift.Status,
		OpeningAmounts: openings,
		Balances:       balances,
		Movements:      movResponses,
		Reconciliation: reconciliation,
		Note:           shift.Note,
		OpenedAt:       shift.OpenedAt.Format(time.RFC3339),
	}
	if shift.ClosedAt != nil {
		closed := shift.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &closed
	}
	return resp, nil
}

// requireOpenShift loads a shift and asserts it is open. Shared by the
// issuance coordinator and the credit-note issuer.
func requireOpenShift(ctx context.Context, repo repository.ShiftRepository, shiftID uuid.UUID) (*model.Shift, error) {
	shift, err := repo.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apierror.Validationf("shift not found")
	}
	if shift.Status != model.ShiftOpen {
		return nil, apierror.Statef(shift.Status, "shift %s is not open", shiftID)
	}
	return shift, nil
}
