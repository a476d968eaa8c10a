package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"frontdesk/internal/apierror"
	"frontdesk/internal/config"
	"frontdesk/internal/dto"
	"frontdesk/internal/infra"
	"frontdesk/internal/model"
	"frontdesk/internal/repository"
	"frontdesk/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var decimalOne = decimal.NewFromInt(1)

// CorrectionPolicy holds the jurisdiction-specific legal windows for voiding
// a document via full cancellation. Partial corrections and accounting
// adjustments are not window-bound.
type CorrectionPolicy struct {
	ReceiptVoidWindowDays int
	// InvoiceCalendarMonth voids invoices until the end of the issuing
	// calendar month; otherwise InvoiceVoidWindowDays applies.
	InvoiceCalendarMonth  bool
	InvoiceVoidWindowDays int
}

// PolicyFromConfig builds the correction policy from runtime configuration.
func PolicyFromConfig(cfg *config.Config) CorrectionPolicy {
	p := CorrectionPolicy{
		ReceiptVoidWindowDays: cfg.ReceiptVoidWindowDays,
		InvoiceCalendarMonth:  cfg.InvoiceVoidWindow == "calendar_month",
	}
	if p.ReceiptVoidWindowDays <= 0 {
		p.ReceiptVoidWindowDays = 7
	}
	if !p.InvoiceCalendarMonth {
		days, err := strconv.Atoi(cfg.InvoiceVoidWindow)
		if err != nil || days <= 0 {
			p.InvoiceCalendarMonth = true
		} else {
			p.InvoiceVoidWindowDays = days
		}
	}
	return p
}

type CreditNoteService interface {
	Issue(ctx context.Context, operatorID uuid.UUID, req dto.IssueCreditNoteRequest) (*dto.DocumentResponse, error)
}

type creditNoteService struct {
	documentRepo repository.DocumentRepository
	paymentRepo  repository.PaymentRepository
	seriesRepo   repository.SeriesRepository
	shiftRepo    repository.ShiftRepository
	ledger       LedgerService
	reservations *infra.ReservationClient
	dispatcher   worker.Dispatcher
	policy       CorrectionPolicy
}

func NewCreditNoteService(
	documentRepo repository.DocumentRepository,
	paymentRepo repository.PaymentRepository,
	seriesRepo repository.SeriesRepository,
	shiftRepo repository.ShiftRepository,
	ledger LedgerService,
	reservations *infra.ReservationClient,
	dispatcher worker.Dispatcher,
	policy CorrectionPolicy,
) CreditNoteService {
	return &creditNoteService{
		documentRepo: documentRepo,
		paymentRepo:  paymentRepo,
		seriesRepo:   seriesRepo,
		shiftRepo:    shiftRepo,
		ledger:       ledger,
		reservations: reservations,
		dispatcher:   dispatcher,
		policy:       policy,
	}
}

func (s *creditNoteService) Issue(ctx context.Context, operatorID uuid.UUID, req dto.IssueCreditNoteRequest) (*dto.DocumentResponse, error) {
	originalID, err := uuid.Parse(req.OriginalDocumentID)
	if err != nil {
		return nil, apierror.Validationf("invalid original_document_id: %v", err)
	}
	if !req.Amount.IsPositive() {
		return nil, apierror.Validationf("correction amount must be positive, got %s", req.Amount)
	}

	original, err := s.documentRepo.FindByID(ctx, originalID)
	if err != nil {
		return nil, apierror.Validationf("original document not found")
	}
	if original.Type == model.DocCreditNote {
		return nil, apierror.Validationf("a credit note cannot correct another credit note")
	}
	if original.AuthorityState != model.StateAccepted {
		return nil, apierror.Statef(original.AuthorityState,
			"only an accepted document can be corrected; %s/%d is %s",
			original.Series, original.Number, original.AuthorityState)
	}

	if req.CorrectionType == model.CorrectionFullCancellation {
		if err := s.checkVoidWindow(original); err != nil {
			return nil, err
		}
		if !req.Amount.Equal(original.TotalAmount) {
			return nil, apierror.Validationf(
				"full cancellation must match the original total %s, got %s",
				original.TotalAmount, req.Amount)
		}
	} else if req.Amount.GreaterThan(original.TotalAmount) {
		return nil, apierror.Validationf(
			"correction amount %s exceeds the original total %s", req.Amount, original.TotalAmount)
	}

	// One live correction per document: a prior non-rejected credit note blocks.
	existing, err := s.documentRepo.FindCreditNotesFor(ctx, originalID)
	if err != nil {
		return nil, err
	}
	for _, note := range existing {
		if note.AuthorityState != model.StateRejected {
			return nil, apierror.Conflictf(
				"document %s/%d already has credit note %s/%d (%s)",
				original.Series, original.Number, note.Series, note.Number, note.AuthorityState)
		}
	}

	// A cash refund moves money out of a drawer, so it needs an open shift.
	refundsCash := req.RefundMethod != nil && *req.RefundMethod == model.MethodCash &&
		req.CorrectionType != model.CorrectionAccountingAdj
	var shift *model.Shift
	if refundsCash {
		if req.ShiftID == nil {
			return nil, apierror.Validationf("a cash refund requires shift_id")
		}
		shiftID, err := uuid.Parse(*req.ShiftID)
		if err != nil {
			return nil, apierror.Validationf("invalid shift_id: %v", err)
		}
		shift, err = requireOpenShift(ctx, s.shiftRepo, shiftID)
		if err != nil {
			return nil, err
		}
	}

	seriesCode := original.Series
	if req.SeriesCode != nil && *req.SeriesCode != "" {
		seriesCode = *req.SeriesCode
	}
	series, err := s.seriesRepo.Resolve(ctx, model.DocCreditNote, seriesCode)
	if err != nil {
		return nil, err
	}
	number, err := s.seriesRepo.Next(ctx, series.ID)
	if err != nil {
		return nil, err
	}

	correctionType := req.CorrectionType
	reason := req.Reason
	note := &model.FiscalDocument{
		Type:           model.DocCreditNote,
		Series:         series.Code,
		Number:         number,
		BuyerDocType:   original.BuyerDocType,
		BuyerDocNumber: original.BuyerDocNumber,
		BuyerName:      original.BuyerName,
		BuyerAddress:   original.BuyerAddress,
		Currency:       original.Currency,
		TaxableAmount:  req.Amount,
		TotalAmount:    req.Amount,
		AuthorityState: model.StatePending,
		CorrectsID:     &original.ID,
		CorrectionType: &correctionType,
		RefundMethod:   req.RefundMethod,
		RejectReason:   nil,
		IssuedAt:       time.Now().UTC(),
		Lines: []model.DocumentLine{{
			Description: reason,
			Quantity:    decimalOne,
			UnitPrice:   req.Amount,
			Subtotal:    req.Amount,
		}},
	}

	err = runTx(ctx, s.shiftRepo.DB(), func(tx *gorm.DB) error {
		if err := s.documentRepo.CreateTx(tx, note); err != nil {
			return err
		}
		if req.CorrectionType == model.CorrectionFullCancellation {
			// Re-read inside the transaction: the pre-checked copy may be
			// stale by the time we get here.
			fresh, err := s.documentRepo.FindByIDTx(tx, originalID)
			if err != nil {
				return err
			}
			if err := fresh.Transition(model.StateCancelled); err != nil {
				return err
			}
			if err := s.documentRepo.UpdateTx(tx, fresh); err != nil {
				return err
			}
		}
		if refundsCash {
			return s.ledger.RecordRefundMovementTx(tx, shift.ID, operatorID,
				req.Amount, original.Currency, note.ID,
				fmt.Sprintf("Refund for document %s-%d: %s", original.Series, original.Number, reason))
		}
		return nil
	})
	if err != nil {
		// The unique index on live corrections settles concurrent issuers:
		// the loser rolls back and surfaces a conflict.
		if isUniqueViolation(err, "uni_documents_live_correction") {
			return nil, apierror.Conflictf(
				"document %s/%d already has a live credit note", original.Series, original.Number)
		}
		return nil, err
	}

	log.Info().
		Str("credit_note_id", note.ID.String()).
		Str("series", note.Series).Int64("number", note.Number).
		Str("corrects", original.ID.String()).
		Str("correction_type", correctionType).
		Msg("credit note issued")

	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueSubmission(ctx, note.ID); err != nil {
			log.Error().Err(err).Str("document_id", note.ID.String()).Msg("submission enqueue failed")
		}
	}

	// Room release is best-effort and never blocks the correction.
	if req.ReleaseReservation && s.reservations != nil {
		if payment, err := s.paymentRepo.FindByDocumentID(ctx, originalID); err == nil && payment.ReservationRef != "" {
			if err := s.reservations.ReleaseRoom(ctx, payment.ReservationRef, reason); err != nil {
				log.Warn().Err(err).Str("reservation_ref", payment.ReservationRef).Msg("room release failed")
			}
		}
	}

	return documentToResponse(note), nil
}

// checkVoidWindow enforces the legal correction window for a full
// cancellation: receipts within N days of issue, invoices until the end of the
// issuing calendar month (or a configured day count).
func (s *creditNoteService) checkVoidWindow(original *model.FiscalDocument) error {
	now := time.Now().UTC()
	switch original.Type {
	case model.DocReceipt, model.DocInternalTicket:
		deadline := original.IssuedAt.AddDate(0, 0, s.policy.ReceiptVoidWindowDays)
		if now.After(deadline) {
			return apierror.Validationf(
				"cancellation window of %d days exceeded for %s/%d (issued %s)",
				s.policy.ReceiptVoidWindowDays, original.Series, original.Number,
				original.IssuedAt.Format("2006-01-02"))
		}
	case model.DocInvoice:
		if s.policy.InvoiceCalendarMonth {
			y, m, _ := original.IssuedAt.Date()
			endOfMonth := time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
			if !now.Before(endOfMonth) {
				return apierror.Validationf(
					"calendar-month cancellation window exceeded for %s/%d (issued %s)",
					original.Series, original.Number, original.IssuedAt.Format("2006-01-02"))
			}
		} else {
			deadline := original.IssuedAt.AddDate(0, 0, s.policy.InvoiceVoidWindowDays)
			if now.After(deadline) {
				return apierror.Validationf(
					"cancellation window of %d days exceeded for %s/%d (issued %s)",
					s.policy.InvoiceVoidWindowDays, original.Series, original.Number,
					original.IssuedAt.Format("2006-01-02"))
			}
		}
	}
	return nil
}
