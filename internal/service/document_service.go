package service

import (
	"context"

	"frontdesk/internal/apierror"
	"frontdesk/internal/dto"
	"frontdesk/internal/model"
	"frontdesk/internal/repository"
	"frontdesk/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type DocumentService interface {
	Get(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error)
	ListPending(ctx context.Context, limit int) ([]dto.DocumentResponse, error)
	// OnAuthorityResult applies a gateway callback verdict to the document.
	OnAuthorityResult(ctx context.Context, req dto.AuthorityCallbackRequest) error
	// Resubmit re-enqueues a pending document flagged for manual submission.
	Resubmit(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error)
}

type documentService struct {
	repo       repository.DocumentRepository
	dispatcher worker.Dispatcher
}

func NewDocumentService(repo repository.DocumentRepository, dispatcher worker.Dispatcher) DocumentService {
	return &documentService{repo: repo, dispatcher: dispatcher}
}

func (s *documentService) Get(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.Validationf("document not found")
	}
	return documentToResponse(doc), nil
}

func (s *documentService) ListPending(ctx context.Context, limit int) ([]dto.DocumentResponse, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	docs, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, *documentToResponse(&docs[i]))
	}
	return out, nil
}

func (s *documentService) OnAuthorityResult(ctx context.Context, req dto.AuthorityCallbackRequest) error {
	docID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		return apierror.Validationf("invalid document_id: %v", err)
	}
	doc, err := s.repo.FindByID(ctx, docID)
	if err != nil {
		return apierror.Validationf("document not found")
	}

	target := model.StateAccepted
	if req.Status == "rejected" {
		target = model.StateRejected
	}
	// Redelivered callbacks are acknowledged, not reapplied.
	if doc.AuthorityState == target {
		return nil
	}
	if err := doc.Transition(target); err != nil {
		return err
	}

	switch target {
	case model.StateAccepted:
		doc.AuthorityRef = req.AuthorityRef
	case model.StateRejected:
		doc.RejectReason = req.Reason
	}
	doc.NextRetryAt = nil
	doc.LastError = nil

	if err := s.repo.Update(ctx, doc); err != nil {
		return err
	}
	log.Info().Str("document_id", doc.ID.String()).
		Str("series", doc.Series).Int64("number", doc.Number).
		Str("state", doc.AuthorityState).
		Msg("authority callback applied")
	return nil
}

func (s *documentService) Resubmit(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.Validationf("document not found")
	}
	if doc.AuthorityState != model.StatePending {
		return nil, apierror.Statef(doc.AuthorityState,
			"only a pending document can be resubmitted; %s/%d is %s",
			doc.Series, doc.Number, doc.AuthorityState)
	}

	doc.ManualSubmission = false
	doc.RetryCount = 0
	doc.NextRetryAt = nil
	doc.LastError = nil
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueSubmission(ctx, doc.ID); err != nil {
			log.Error().Err(err).Str("document_id", doc.ID.String()).Msg("resubmit enqueue failed")
		}
	}
	log.Info().Str("document_id", doc.ID.String()).Msg("document resubmitted")
	return documentToResponse(doc), nil
}
