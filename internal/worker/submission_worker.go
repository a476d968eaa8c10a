package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"frontdesk/internal/infra"
	"frontdesk/internal/model"
	"frontdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SubmissionWorker submits pending documents to the fiscal gateway and applies
// the verdict through the document state machine. It depends on repositories
// directly, not on services, to keep the worker package import-cycle free.
type SubmissionWorker struct {
	documentRepo repository.DocumentRepository
	gateway      *infra.FiscalGateway
	cb           *infra.CircuitBreaker
	issuerTaxID  string
	maxRetries   int
}

func NewSubmissionWorker(documentRepo repository.DocumentRepository, gateway *infra.FiscalGateway, cb *infra.CircuitBreaker, issuerTaxID string, maxRetries int) *SubmissionWorker {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &SubmissionWorker{
		documentRepo: documentRepo,
		gateway:      gateway,
		cb:           cb,
		issuerTaxID:  issuerTaxID,
		maxRetries:   maxRetries,
	}
}

// Handle processes one SubmissionJob from the queue.
func (w *SubmissionWorker) Handle(ctx context.Context, raw []byte) error {
	var job SubmissionJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return fmt.Errorf("submission job: bad payload: %w", err)
	}
	docID, err := uuid.Parse(job.DocumentID)
	if err != nil {
		return fmt.Errorf("submission job: bad document id: %w", err)
	}
	return w.Submit(ctx, docID)
}

// Submit pushes one document to the gateway. Transport failures schedule a
// retry; an explicit rejection from the authority is final and moves the
// document to REJECTED.
func (w *SubmissionWorker) Submit(ctx context.Context, docID uuid.UUID) error {
	doc, err := w.documentRepo.FindByID(ctx, docID)
	if err != nil {
		return fmt.Errorf("submission: load document %s: %w", docID, err)
	}
	if doc.AuthorityState != model.StatePending {
		// Already resolved by a callback or an earlier attempt.
		log.Debug().Str("document_id", docID.String()).Str("state", doc.AuthorityState).
			Msg("submission skipped, document not pending")
		return nil
	}

	payload := w.buildPayload(ctx, doc)

	var resp *infra.SubmissionResponse
	err = w.cb.Execute(func() error {
		var submitErr error
		resp, submitErr = w.gateway.Submit(ctx, payload)
		return submitErr
	})
	if err != nil {
		return w.scheduleRetry(ctx, doc, err)
	}

	switch resp.Status {
	case infra.SubmissionAccepted:
		if err := doc.Transition(model.StateAccepted); err != nil {
			return err
		}
		ref := resp.AuthorityRef
		doc.AuthorityRef = &ref
		doc.NextRetryAt = nil
		doc.LastError = nil
		if err := w.documentRepo.Update(ctx, doc); err != nil {
			return err
		}
		log.Info().Str("document_id", doc.ID.String()).
			Str("series", doc.Series).Int64("number", doc.Number).
			Str("authority_ref", ref).
			Msg("document accepted by authority")
		return nil

	case infra.SubmissionRejected:
		if err := doc.Transition(model.StateRejected); err != nil {
			return err
		}
		reason := resp.Reason
		doc.RejectReason = &reason
		doc.NextRetryAt = nil
		if err := w.documentRepo.Update(ctx, doc); err != nil {
			return err
		}
		log.Warn().Str("document_id", doc.ID.String()).
			Str("series", doc.Series).Int64("number", doc.Number).
			Str("reason", reason).
			Msg("document rejected by authority")
		return nil

	default:
		return w.scheduleRetry(ctx, doc, fmt.Errorf("gateway returned unknown status %q", resp.Status))
	}
}

func (w *SubmissionWorker) buildPayload(ctx context.Context, doc *model.FiscalDocument) infra.SubmissionPayload {
	p := infra.SubmissionPayload{
		DocumentID:    doc.ID.String(),
		DocumentType:  doc.Type,
		Series:        doc.Series,
		Number:        doc.Number,
		IssuerTaxID:   w.issuerTaxID,
		BuyerDocType:  doc.BuyerDocType,
		Currency:      doc.Currency,
		TaxableAmount: doc.TaxableAmount.InexactFloat64(),
		ExemptAmount:  doc.ExemptAmount.InexactFloat64(),
		TaxAmount:     doc.TaxAmount.InexactFloat64(),
		TotalAmount:   doc.TotalAmount.InexactFloat64(),
	}
	if doc.BuyerDocNumber != nil {
		p.BuyerDocNumber = *doc.BuyerDocNumber
	}
	if doc.BuyerName != nil {
		p.BuyerName = *doc.BuyerName
	}
	if doc.CorrectsID != nil {
		if original, err := w.documentRepo.FindByID(ctx, *doc.CorrectsID); err == nil {
			p.CorrectsSeries = original.Series
			p.CorrectsNumber = original.Number
		}
	}
	return p
}

// scheduleRetry records the failure and sets the next retry time. Once the
// retry horizon is exhausted, the document is flagged for manual resubmission
// and the error is propagated so the job lands in the DLQ.
func (w *SubmissionWorker) scheduleRetry(ctx context.Context, doc *model.FiscalDocument, cause error) error {
	doc.RetryCount++
	msg := cause.Error()
	doc.LastError = &msg

	if doc.RetryCount >= w.maxRetries {
		doc.ManualSubmission = true
		doc.NextRetryAt = nil
		if err := w.documentRepo.Update(ctx, doc); err != nil {
			return err
		}
		log.Error().Str("document_id", doc.ID.String()).Int("retries", doc.RetryCount).
			Msg("submission retries exhausted, flagged for manual resubmission")
		return fmt.Errorf("submission: retries exhausted for %s: %w", doc.ID, cause)
	}

	next := time.Now().UTC().Add(computeRetryBackoff(doc.RetryCount))
	doc.NextRetryAt = &next
	if err := w.documentRepo.Update(ctx, doc); err != nil {
		return err
	}
	log.Warn().Err(cause).Str("document_id", doc.ID.String()).
		Int("retry", doc.RetryCount).Time("next_retry_at", next).
		Msg("submission failed, retry scheduled")
	// The retry cron picks it up via next_retry_at; the queue job is done.
	return nil
}

// computeRetryBackoff returns the delay before the Nth retry: 1m, 2m, 4m, 8m …
// capped at 30m.
func computeRetryBackoff(retryCount int) time.Duration {
	if retryCount <= 0 {
		return time.Minute
	}
	if retryCount > 6 {
		return 30 * time.Minute
	}
	d := time.Minute << (retryCount - 1)
	if d > 30*time.Minute {
		d = 30 * time.Minute
	}
	return d
}
