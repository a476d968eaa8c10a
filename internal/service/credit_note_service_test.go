package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"frontdesk/internal/apierror"
	"frontdesk/internal/dto"
	"frontdesk/internal/model"
	"frontdesk/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type creditNoteFixture struct {
	svc        service.CreditNoteService
	documents  *fakeDocumentRepo
	payments   *fakePaymentRepo
	ledger     *fakeLedgerRepo
	shiftRepo  *fakeShiftRepo
	dispatcher *fakeDispatcher
	operatorID uuid.UUID
	shiftID    uuid.UUID
}

func newCreditNoteFixture(t *testing.T) *creditNoteFixture {
	t.Helper()
	shiftRepo := newFakeShiftRepo()
	ledgerRepo := newFakeLedgerRepo()
	documentRepo := newFakeDocumentRepo()
	paymentRepo := newFakePaymentRepo()
	seriesRepo := newFakeSeriesRepo()
	dispatcher := &fakeDispatcher{}

	ledgerSvc := service.NewLedgerService(ledgerRepo, shiftRepo)
	policy := service.CorrectionPolicy{ReceiptVoidWindowDays: 7, InvoiceCalendarMonth: true}
	svc := service.NewCreditNoteService(documentRepo, paymentRepo, seriesRepo, shiftRepo, ledgerSvc, nil, dispatcher, policy)

	operatorID := uuid.New()
	shift := &model.Shift{
		RegisterID: uuid.New(),
		OperatorID: operatorID,
		Status:     model.ShiftOpen,
		OpenedAt:   time.Now().UTC(),
		Totals:     []model.ShiftTotal{{Currency: "PEN", Opening: decimal.NewFromInt(100)}},
	}
	require.NoError(t, shiftRepo.CreateShift(context.Background(), shift))

	return &creditNoteFixture{
		svc:        svc,
		documents:  documentRepo,
		payments:   paymentRepo,
		ledger:     ledgerRepo,
		shiftRepo:  shiftRepo,
		dispatcher: dispatcher,
		operatorID: operatorID,
		shiftID:    shift.ID,
	}
}

// seedAccepted stores an accepted document issued at the given time.
func (f *creditNoteFixture) seedAccepted(t *testing.T, docType string, total decimal.Decimal, issuedAt time.Time) *model.FiscalDocument {
	t.Helper()
	ref := "AUTH-001"
	doc := &model.FiscalDocument{
		Type:           docType,
		Series:         "B001",
		Number:         int64(len(f.documents.docs) + 1),
		Currency:       "PEN",
		TaxableAmount:  total,
		TotalAmount:    total,
		AuthorityState: model.StateAccepted,
		AuthorityRef:   &ref,
		IssuedAt:       issuedAt,
	}
	require.NoError(t, f.documents.CreateTx(nil, doc))
	return doc
}

func TestCreditNoteFullCancellation(t *testing.T) {
	f := newCreditNoteFixture(t)
	original := f.seedAccepted(t, model.DocReceipt, decimal.NewFromInt(150), time.Now().UTC().Add(-24*time.Hour))

	cash := model.MethodCash
	shiftID := f.shiftID.String()
	resp, err := f.svc.Issue(context.Background(), f.operatorID, dto.IssueCreditNoteRequest{
		OriginalDocumentID: original.ID.String(),
		ShiftID:            &shiftID,
		CorrectionType:     model.CorrectionFullCancellation,
		Amount:             decimal.NewFromInt(150),
		Reason:             "guest cancelled the stay",
		RefundMethod:       &cash,
	})
	require.NoError(t, err)

	assert.Equal(t, model.DocCreditNote, resp.Type)
	assert.Equal(t, model.StatePending, resp.AuthorityState)
	require.NotNil(t, resp.CorrectsID)
	assert.Equal(t, original.ID.String(), *resp.CorrectsID)

	// The original flipped to CANCELLED in the same transaction.
	stored, err := f.documents.FindByID(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCancelled, stored.AuthorityState)

	// An OUT refund movement landed on the supplied shift.
	movements, _ := f.ledger.ListMovements(context.Background(), f.shiftID)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementRefund, movements[0].Kind)
	assert.Equal(t, model.DirectionOut, movements[0].Direction)
	assert.Equal(t, "150", movements[0].Amount.String())

	assert.Len(t, f.dispatcher.submissions, 1)
}

func TestCreditNoteWindowExceeded(t *testing.T) {
	f := newCreditNoteFixture(t)
	// A receipt issued 10 days ago is past the 7-day window.
	original := f.seedAccepted(t, model.DocReceipt, decimal.NewFromInt(80), time.Now().UTC().AddDate(0, 0, -10))

	_, err := f.svc.Issue(context.Background(), f.operatorID, dto.IssueCreditNoteRequest{
		OriginalDocumentID: original.ID.String(),
		CorrectionType:     model.CorrectionFullCancellation,
		Amount:             decimal.NewFromInt(80),
		Reason:             "late void attempt",
	})
	var ve *apierror.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Msg, "window")

	// The original stays ACCEPTED, untouched.
	stored, _ := f.documents.FindByID(context.Background(), original.ID)
	assert.Equal(t, model.StateAccepted, stored.AuthorityState)
}

func TestCreditNotePartialOutsideWindow(t *testing.T) {
	// Partial corrections are not window-bound.
	f := newCreditNoteFixture(t)
	original := f.seedAccepted(t, model.DocReceipt, decimal.NewFromInt(200), time.Now().UTC().AddDate(0, 0, -30))

	resp, err := f.svc.Issue(context.Background(), f.operatorID, dto.IssueCreditNoteRequest{
		OriginalDocumentID: original.ID.String(),
		CorrectionType:     model.CorrectionPartialAmount,
		Amount:             decimal.NewFromInt(50),
		Reason:             "minibar charge disputed",
	})
	require.NoError(t, err)
	assert.Equal(t, "50", resp.TotalAmount.String())

	// Partial correction keeps the original ACCEPTED.
	stored, _ := f.documents.FindByID(context.Background(), original.ID)
	assert.Equal(t, model.StateAccepted, stored.AuthorityState)
}

func TestCreditNoteOriginalNotAccepted(t *testing.T) {
	f := newCreditNoteFixture(t)
	doc := &model.FiscalDocument{
		Type: model.DocReceipt, Series: "B001", Number: 99,
		Currency: "PEN", TotalAmount: decimal.NewFromInt(60),
		AuthorityState: model.StatePending, IssuedAt: time.Now().UTC(),
	}
	require.NoError(t, f.documents.CreateTx(nil, doc))

	_, err := f.svc.Issue(context.Background(), f.operatorID, dto.IssueCreditNoteRequest{
		OriginalDocumentID: doc.ID.String(),
		CorrectionType:     model.CorrectionFullCancellation,
		Amount:             decimal.NewFromInt(60),
		Reason:             "premature correction",
	})
	var se *apierror.StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, model.StatePending, se.Current)
}

func TestCreditNoteDuplicateCorrection(t *testing.T) {
	f := newCreditNoteFixture(t)
	original := f.seedAccepted(t, model.DocReceipt, decimal.NewFromInt(100), time.Now().UTC())

	_, err := f.svc.Issue(context.Background(), f.operatorID, dto.IssueCreditNoteRequest{
		OriginalDocumentID: original.ID.String(),
		CorrectionType:     model.CorrectionPartialAmount,
		Amount:             decimal.NewFromInt(30),
		Reason:             "first correction",
	})
	require.NoError(t, err)

	_, err = f.svc.Issue(context.Background(), f.operatorID, dto.IssueCreditNoteRequest{
		OriginalDocumentID: original.ID.String(),
		CorrectionType:     model.CorrectionPartialAmount,
		Amount:             decimal.NewFromInt(20),
		Reason:             "second correction",
	})
	var conflict *apierror.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCreditNoteAmountExceedsOriginal(t *testing.T) {
	f := newCreditNoteFixture(t)
	original := f.seedAccepted(t, model.DocReceipt, decimal.NewFromInt(100), time.Now().UTC())

	_, err := f.svc.Issue(context.Background(), f.operatorID, dto.IssueCreditNoteRequest{
		OriginalDocumentID: original.ID.String(),
		CorrectionType:     model.CorrectionPartialAmount,
		Amount:             decimal.NewFromInt(120),
		Reason:             "over-refund attempt",
	})
	var ve *apierror.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Msg, "exceeds")
}

func TestCreditNoteOfCreditNote(t *testing.T) {
	f := newCreditNoteFixture(t)
	original := f.seedAccepted(t, model.DocReceipt, decimal.NewFromInt(100), time.Now().UTC())
	note := f.seedAccepted(t, model.DocCreditNote, decimal.NewFromInt(100), time.Now().UTC())
	note.CorrectsID = &original.ID
	require.NoError(t, f.documents.Update(context.Background(), note))

	_, err := f.svc.Issue(context.Background(), f.operatorID, dto.IssueCreditNoteRequest{
		OriginalDocumentID: note.ID.String(),
		CorrectionType:     model.CorrectionFullCancellation,
		Amount:             decimal.NewFromInt(100),
		Reason:             "chained correction",
	})
	var ve *apierror.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Msg, "cannot correct")
}

// gateDocumentRepo holds every issuer at the duplicate-correction pre-check
// until all expected issuers have arrived, so each one sees no prior note and
// the race falls through to the unique index on live corrections.
type gateDocumentRepo struct {
	*fakeDocumentRepo
	barrier sync.WaitGroup
}

func (r *gateDocumentRepo) FindCreditNotesFor(ctx context.Context, originalID uuid.UUID) ([]model.FiscalDocument, error) {
	notes, err := r.fakeDocumentRepo.FindCreditNotesFor(ctx, originalID)
	r.barrier.Done()
	r.barrier.Wait()
	return notes, err
}

func TestCreditNoteConcurrentCorrections(t *testing.T) {
	shiftRepo := newFakeShiftRepo()
	ledgerRepo := newFakeLedgerRepo()
	documents := &gateDocumentRepo{fakeDocumentRepo: newFakeDocumentRepo()}
	documents.barrier.Add(2)

	ledgerSvc := service.NewLedgerService(ledgerRepo, shiftRepo)
	policy := service.CorrectionPolicy{ReceiptVoidWindowDays: 7, InvoiceCalendarMonth: true}
	svc := service.NewCreditNoteService(documents, newFakePaymentRepo(), newFakeSeriesRepo(),
		shiftRepo, ledgerSvc, nil, &fakeDispatcher{}, policy)

	operatorID := uuid.New()
	shift := &model.Shift{
		RegisterID: uuid.New(),
		OperatorID: operatorID,
		Status:     model.ShiftOpen,
		Totals:     []model.ShiftTotal{{Currency: "PEN", Opening: decimal.NewFromInt(100)}},
	}
	require.NoError(t, shiftRepo.CreateShift(context.Background(), shift))

	ref := "AUTH-001"
	original := &model.FiscalDocument{
		Type: model.DocReceipt, Series: "B001", Number: 1,
		Currency: "PEN", TotalAmount: decimal.NewFromInt(150),
		AuthorityState: model.StateAccepted, AuthorityRef: &ref,
		IssuedAt: time.Now().UTC(),
	}
	require.NoError(t, documents.fakeDocumentRepo.CreateTx(nil, original))

	cash := model.MethodCash
	shiftID := shift.ID.String()
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Issue(context.Background(), operatorID, dto.IssueCreditNoteRequest{
				OriginalDocumentID: original.ID.String(),
				ShiftID:            &shiftID,
				CorrectionType:     model.CorrectionFullCancellation,
				Amount:             decimal.NewFromInt(150),
				Reason:             "guest cancelled the stay",
				RefundMethod:       &cash,
			})
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var conflict *apierror.ConflictError
		require.ErrorAs(t, err, &conflict)
		conflicts++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	// Exactly one live credit note and one refund, not two.
	notes, err := documents.fakeDocumentRepo.FindCreditNotesFor(context.Background(), original.ID)
	require.NoError(t, err)
	live := 0
	for _, n := range notes {
		if n.AuthorityState != model.StateRejected {
			live++
		}
	}
	assert.Equal(t, 1, live)

	movements, _ := ledgerRepo.ListMovements(context.Background(), shift.ID)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementRefund, movements[0].Kind)

	stored, _ := documents.fakeDocumentRepo.FindByID(context.Background(), original.ID)
	assert.Equal(t, model.StateCancelled, stored.AuthorityState)
}

func TestCreditNoteCashRefundNeedsShift(t *testing.T) {
	f := newCreditNoteFixture(t)
	original := f.seedAccepted(t, model.DocReceipt, decimal.NewFromInt(100), time.Now().UTC())

	cash := model.MethodCash
	_, err := f.svc.Issue(context.Background(), f.operatorID, dto.IssueCreditNoteRequest{
		OriginalDocumentID: original.ID.String(),
		CorrectionType:     model.CorrectionFullCancellation,
		Amount:             decimal.NewFromInt(100),
		Reason:             "refund without drawer",
		RefundMethod:       &cash,
	})
	var ve *apierror.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Msg, "shift_id")
}

func TestCreditNoteAccountingAdjustmentMovesNoCash(t *testing.T) {
	f := newCreditNoteFixture(t)
	original := f.seedAccepted(t, model.DocInvoice, decimal.NewFromInt(500), time.Now().UTC())

	resp, err := f.svc.Issue(context.Background(), f.operatorID, dto.IssueCreditNoteRequest{
		OriginalDocumentID: original.ID.String(),
		CorrectionType:     model.CorrectionAccountingAdj,
		Amount:             decimal.NewFromInt(500),
		Reason:             "rebilled under correct tax identity",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DocCreditNote, resp.Type)

	movements, _ := f.ledger.ListMovements(context.Background(), f.shiftID)
	assert.Empty(t, movements)
}
