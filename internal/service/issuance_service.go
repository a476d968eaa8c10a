package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"frontdesk/internal/apierror"
	"frontdesk/internal/dto"
	"frontdesk/internal/model"
	"frontdesk/internal/repository"
	"frontdesk/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// numberAllocRetries bounds allocation attempts when a concurrently-issued
// document grabs the same (series, number).
const numberAllocRetries = 3

// IssuanceService is the single entry point for collecting a payment: the
// payment, its fiscal document, the ledger movement and the idempotency record
// commit in ONE transaction, so a payment without a document (or vice versa)
// can never exist.
type IssuanceService interface {
	IssuePayment(ctx context.Context, operatorID uuid.UUID, req dto.IssuePaymentRequest) (*dto.IssuePaymentResponse, error)
}

type issuanceService struct {
	shiftRepo       repository.ShiftRepository
	paymentRepo     repository.PaymentRepository
	documentRepo    repository.DocumentRepository
	seriesRepo      repository.SeriesRepository
	idempotencyRepo repository.IdempotencyRepository
	ledger          LedgerService
	dispatcher      worker.Dispatcher
}

func NewIssuanceService(
	shiftRepo repository.ShiftRepository,
	paymentRepo repository.PaymentRepository,
	documentRepo repository.DocumentRepository,
	seriesRepo repository.SeriesRepository,
	idempotencyRepo repository.IdempotencyRepository,
	ledger LedgerService,
	dispatcher worker.Dispatcher,
) IssuanceService {
	return &issuanceService{
		shiftRepo:       shiftRepo,
		paymentRepo:     paymentRepo,
		documentRepo:    documentRepo,
		seriesRepo:      seriesRepo,
		idempotencyRepo: idempotencyRepo,
		ledger:          ledger,
		dispatcher:      dispatcher,
	}
}

func (s *issuanceService) IssuePayment(ctx context.Context, operatorID uuid.UUID, req dto.IssuePaymentRequest) (*dto.IssuePaymentResponse, error) {
	// Replay of a completed request returns the stored outcome, untouched.
	if rec, err := s.idempotencyRepo.Find(ctx, req.IdempotencyKey); err == nil {
		return s.storedOutcome(ctx, rec)
	}

	shiftID, err := uuid.Parse(req.ShiftID)
	if err != nil {
		return nil, apierror.Validationf("invalid shift_id: %v", err)
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	shift, err := requireOpenShift(ctx, s.shiftRepo, shiftID)
	if err != nil {
		return nil, err
	}

	series, err := s.seriesRepo.Resolve(ctx, req.DocumentType, req.SeriesCode)
	if err != nil {
		return nil, err
	}

	var resp *dto.IssuePaymentResponse
	for attempt := 0; attempt < numberAllocRetries; attempt++ {
		// Allocation runs on the base connection, outside the transaction
		// below: a number consumed by an aborted attempt stays consumed, so
		// the sequence never moves backwards.
		number, err := s.seriesRepo.Next(ctx, series.ID)
		if err != nil {
			return nil, err
		}

		resp, err = s.issueTx(ctx, operatorID, shift, req, series.Code, number)
		if err == nil {
			break
		}
		if isUniqueViolation(err, "idempotency") {
			// Lost a concurrent race on the same key: the winner's outcome is
			// authoritative, this attempt's number becomes a tolerated gap.
			rec, findErr := s.idempotencyRepo.Find(ctx, req.IdempotencyKey)
			if findErr != nil {
				return nil, err
			}
			return s.storedOutcome(ctx, rec)
		}
		if isUniqueViolation(err, "idx_type_series_number") {
			log.Warn().Str("series", series.Code).Int64("number", number).
				Msg("document number collision, reallocating")
			continue
		}
		return nil, err
	}
	if resp == nil {
		return nil, apierror.Conflictf("could not allocate a document number for series %s", series.Code)
	}

	// Post-commit side effects; the committed state is the source of truth and
	// the retry cron covers a lost enqueue.
	docID := uuid.MustParse(resp.Document.ID)
	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueSubmission(ctx, docID); err != nil {
			log.Error().Err(err).Str("document_id", resp.Document.ID).Msg("submission enqueue failed")
		}
		if req.GuestEmail != nil && *req.GuestEmail != "" {
			notice := worker.EmailJob{
				To:      *req.GuestEmail,
				Subject: fmt.Sprintf("Your %s %s-%d", req.DocumentType, resp.Document.Series, resp.Document.Number),
				Body: fmt.Sprintf("A %s for %s %s has been issued for your stay. Document %s-%d.",
					req.DocumentType, req.Amount, req.Currency, resp.Document.Series, resp.Document.Number),
			}
			if err := s.dispatcher.EnqueueEmail(ctx, notice); err != nil {
				log.Error().Err(err).Str("to", *req.GuestEmail).Msg("email enqueue failed")
			}
		}
	}
	return resp, nil
}

// issueTx creates document, payment, movement and idempotency record in one
// transaction.
func (s *issuanceService) issueTx(ctx context.Context, operatorID uuid.UUID, shift *model.Shift, req dto.IssuePaymentRequest, seriesCode string, number int64) (*dto.IssuePaymentResponse, error) {
	doc := buildDocument(req, seriesCode, number)
	doc.ID = uuid.New()
	payment := &model.Payment{
		ID:             uuid.New(),
		ShiftID:        shift.ID,
		ReservationRef: req.ReservationRef,
		Method:         req.Method,
		Amount:         req.Amount,
		Currency:       req.Currency,
		ExternalRef:    req.ExternalRef,
		DocumentID:     doc.ID,
		OperatorID:     operatorID,
	}

	err := runTx(ctx, s.shiftRepo.DB(), func(tx *gorm.DB) error {
		// The record insert goes first: a concurrent issuer with the same key
		// fails here, before any money or document rows are written.
		if err := s.idempotencyRepo.CreateTx(tx, &model.IdempotencyRecord{
			Key:        req.IdempotencyKey,
			PaymentID:  payment.ID,
			DocumentID: doc.ID,
		}); err != nil {
			return err
		}
		if err := s.documentRepo.CreateTx(tx, doc); err != nil {
			return err
		}
		if err := s.paymentRepo.CreateTx(tx, payment); err != nil {
			return err
		}
		return s.ledger.RecordPaymentMovementTx(tx, shift.ID, operatorID,
			req.Amount, req.Currency, payment.ID, paymentDescription(doc.Series, doc.Number))
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("payment_id", payment.ID.String()).
		Str("document_id", doc.ID.String()).
		Str("series", doc.Series).Int64("number", doc.Number).
		Str("shift_id", shift.ID.String()).
		Msg("payment issued")

	return &dto.IssuePaymentResponse{
		Payment:  *paymentToResponse(payment),
		Document: *documentToResponse(doc),
	}, nil
}

func (s *issuanceService) validate(req dto.IssuePaymentRequest) error {
	if !req.Amount.IsPositive() {
		return apierror.Validationf("amount must be positive, got %s", req.Amount)
	}
	if !model.ValidMethod(req.Method) {
		return apierror.Validationf("unknown payment method %q", req.Method)
	}
	if !model.ValidDocumentType(req.DocumentType) {
		return apierror.Validationf("document type %q cannot be issued directly", req.DocumentType)
	}

	sum := decimal.Zero
	for i, line := range req.Lines {
		if !line.Subtotal.IsPositive() {
			return apierror.Validationf("line %d: subtotal must be positive", i+1)
		}
		sum = sum.Add(line.Subtotal)
	}
	if !sum.Equal(req.Amount) {
		return apierror.Validationf("amount %s does not equal line total %s", req.Amount, sum)
	}

	return validateBuyer(req.DocumentType, req.Buyer)
}

// validateBuyer enforces the per-type buyer identity rules: an invoice needs a
// full tax identity, a receipt needs a document number unless anonymous, and
// an internal ticket carries no buyer at all.
func validateBuyer(documentType string, buyer dto.BuyerRequest) error {
	switch documentType {
	case model.DocInvoice:
		if buyer.DocType != model.BuyerDocTaxID {
			return apierror.Validationf("an invoice requires a tax_id buyer document")
		}
		if buyer.DocNumber == nil || *buyer.DocNumber == "" {
			return apierror.Validationf("an invoice requires the buyer's tax document number")
		}
		if buyer.Name == nil || *buyer.Name == "" {
			return apierror.Validationf("an invoice requires the buyer's legal name")
		}
	case model.DocReceipt:
		if buyer.DocType != model.BuyerDocNone && (buyer.DocNumber == nil || *buyer.DocNumber == "") {
			return apierror.Validationf("buyer document number is required when a document type is given")
		}
	case model.DocInternalTicket:
		if buyer.DocType != model.BuyerDocNone {
			return apierror.Validationf("an internal ticket carries no buyer identity")
		}
	}
	return nil
}

func (s *issuanceService) storedOutcome(ctx context.Context, rec *model.IdempotencyRecord) (*dto.IssuePaymentResponse, error) {
	payment, err := s.paymentRepo.FindByID(ctx, rec.PaymentID)
	if err != nil {
		return nil, err
	}
	doc, err := s.documentRepo.FindByID(ctx, rec.DocumentID)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("key", rec.Key).Str("payment_id", rec.PaymentID.String()).
		Msg("idempotent replay, returning stored outcome")
	return &dto.IssuePaymentResponse{
		Payment:  *paymentToResponse(payment),
		Document: *documentToResponse(doc),
	}, nil
}

func buildDocument(req dto.IssuePaymentRequest, seriesCode string, number int64) *model.FiscalDocument {
	taxable, exempt, tax := decimal.Zero, decimal.Zero, decimal.Zero
	lines := make([]model.DocumentLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.Exempt {
			exempt = exempt.Add(l.Subtotal)
		} else {
			taxable = taxable.Add(l.Subtotal.Sub(l.TaxAmount))
			tax = tax.Add(l.TaxAmount)
		}
		lines = append(lines, model.DocumentLine{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
			TaxAmount:   l.TaxAmount,
			Exempt:      l.Exempt,
		})
	}

	doc := &model.FiscalDocument{
		Type:           req.DocumentType,
		Series:         seriesCode,
		Number:         number,
		BuyerDocType:   req.Buyer.DocType,
		BuyerDocNumber: req.Buyer.DocNumber,
		BuyerName:      req.Buyer.Name,
		BuyerAddress:   req.Buyer.Address,
		Currency:       req.Currency,
		TaxableAmount:  taxable,
		ExemptAmount:   exempt,
		TaxAmount:      tax,
		TotalAmount:    req.Amount,
		AuthorityState: model.StatePending,
		IssuedAt:       time.Now().UTC(),
		Lines:          lines,
	}
	return doc
}

func paymentToResponse(p *model.Payment) *dto.PaymentResponse {
	return &dto.PaymentResponse{
		ID:             p.ID.String(),
		ShiftID:        p.ShiftID.String(),
		ReservationRef: p.ReservationRef,
		Method:         p.Method,
		Amount:         p.Amount,
		Currency:       p.Currency,
		DocumentID:     p.DocumentID.String(),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

func documentToResponse(d *model.FiscalDocument) *dto.DocumentResponse {
	resp := &dto.DocumentResponse{
		ID:             d.ID.String(),
		Type:           d.Type,
		Series:         d.Series,
		Number:         d.Number,
		BuyerDocType:   d.BuyerDocType,
		BuyerDocNumber: d.BuyerDocNumber,
		BuyerName:      d.BuyerName,
		Currency:       d.Currency,
		TaxableAmount:  d.TaxableAmount,
		ExemptAmount:   d.ExemptAmount,
		TaxAmount:      d.TaxAmount,
		TotalAmount:    d.TotalAmount,
		AuthorityState: d.AuthorityState,
		AuthorityRef:   d.AuthorityRef,
		RejectReason:   d.RejectReason,
		CorrectionType: d.CorrectionType,
		ManualFlag:     d.ManualSubmission,
		IssuedAt:       d.IssuedAt.Format(time.RFC3339),
	}
	if d.CorrectsID != nil {
		id := d.CorrectsID.String()
		resp.CorrectsID = &id
	}
	return resp
}

// isUniqueViolation reports whether err is a unique-constraint failure on the
// named index/constraint.
func isUniqueViolation(err error, name string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) && name == "" {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") && strings.Contains(msg, name) ||
		strings.Contains(msg, "UNIQUE constraint") && strings.Contains(msg, name)
}
