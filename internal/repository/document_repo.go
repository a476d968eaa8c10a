package repository

import (
	"context"
	"time"

	"frontdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	CreateTx(tx *gorm.DB, d *model.FiscalDocument) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error)
	// FindByIDTx re-reads a document inside the caller's transaction.
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.FiscalDocument, error)
	Update(ctx context.Context, d *model.FiscalDocument) error
	UpdateTx(tx *gorm.DB, d *model.FiscalDocument) error
	// FindCreditNotesFor returns all credit notes referencing the document.
	FindCreditNotesFor(ctx context.Context, originalID uuid.UUID) ([]model.FiscalDocument, error)
	// ListPendingRetries returns pending documents whose next_retry_at has passed.
	ListPendingRetries(ctx context.Context, now time.Time, limit int) ([]model.FiscalDocument, error)
	ListPending(ctx context.Context, limit int) ([]model.FiscalDocument, error)
}

type documentRepo struct{ db *gorm.DB }

func NewDocumentRepository(db *gorm.DB) DocumentRepository { return &documentRepo{db: db} }

func (r *documentRepo) CreateTx(tx *gorm.DB, d *model.FiscalDocument) error {
	return tx.Create(d).Error
}

func (r *documentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.FiscalDocument, error) {
	var d model.FiscalDocument
	err := r.db.WithContext(ctx).Preload("Lines").First(&d, id).Error
	return &d, err
}

func (r *documentRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.FiscalDocument, error) {
	var d model.FiscalDocument
	err := tx.First(&d, id).Error
	return &d, err
}

func (r *documentRepo) Update(ctx context.Context, d *model.FiscalDocument) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *documentRepo) UpdateTx(tx *gorm.DB, d *model.FiscalDocument) error {
	return tx.Save(d).Error
}

func (r *documentRepo) FindCreditNotesFor(ctx context.Context, originalID uuid.UUID) ([]model.FiscalDocument, error) {
	var notes []model.FiscalDocument
	err := r.db.WithContext(ctx).
		Where("corrects_id = ?", originalID).
		Find(&notes).Error
	return notes, err
}

func (r *documentRepo) ListPendingRetries(ctx context.Context, now time.Time, limit int) ([]model.FiscalDocument, error) {
	var docs []model.FiscalDocument
	err := r.db.WithContext(ctx).
		Where("authority_state = ? AND manual_submission = false AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			model.StatePending, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}

func (r *documentRepo) ListPending(ctx context.Context, limit int) ([]model.FiscalDocument, error) {
	var docs []model.FiscalDocument
	err := r.db.WithContext(ctx).
		Where("authority_state = ?", model.StatePending).
		Order("created_at ASC").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}
