package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"frontdesk/internal/model"
	"frontdesk/internal/repository"
	"frontdesk/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var errNotFound = errors.New("not found")

// ── In-memory ShiftRepository ────────────────────────────────────────────────

type fakeShiftRepo struct {
	mu     sync.Mutex
	shifts map[uuid.UUID]*model.Shift
}

func newFakeShiftRepo() *fakeShiftRepo {
	return &fakeShiftRepo{shifts: make(map[uuid.UUID]*model.Shift)}
}

func (r *fakeShiftRepo) CreateShift(_ context.Context, s *model.Shift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	for _, existing := range r.shifts {
		if existing.RegisterID == s.RegisterID && existing.Status == model.ShiftOpen {
			return fmt.Errorf(`duplicate key value violates unique constraint "uni_shifts_open_register"`)
		}
	}
	for i := range s.Totals {
		if s.Totals[i].ID == uuid.Nil {
			s.Totals[i].ID = uuid.New()
		}
		s.Totals[i].ShiftID = s.ID
	}
	r.shifts[s.ID] = s
	return nil
}

// FindByID returns a copy, mirroring a fresh row read — mutations by the
// caller never leak into the store except through the write methods.
func (r *fakeShiftRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shifts[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *s
	cp.Totals = append([]model.ShiftTotal(nil), s.Totals...)
	return &cp, nil
}

func (r *fakeShiftRepo) FindOpenByRegister(_ context.Context, registerID uuid.UUID) (*model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shifts {
		if s.RegisterID == registerID && s.Status == model.ShiftOpen {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeShiftRepo) CloseTx(_ *gorm.DB, s *model.Shift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.shifts[s.ID]
	stored.Status = s.Status
	stored.ClosedAt = s.ClosedAt
	stored.Note = s.Note
	stored.Breakdown = s.Breakdown
	return nil
}

func (r *fakeShiftRepo) UpdateTotalTx(_ *gorm.DB, t *model.ShiftTotal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shifts[t.ShiftID]
	if !ok {
		return errNotFound
	}
	for i := range s.Totals {
		if s.Totals[i].Currency == t.Currency {
			s.Totals[i] = *t
			return nil
		}
	}
	s.Totals = append(s.Totals, *t)
	return nil
}

func (r *fakeShiftRepo) ListClosed(_ context.Context, page, limit int) ([]model.Shift, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var closed []model.Shift
	for _, s := range r.shifts {
		if s.Status == model.ShiftClosed {
			closed = append(closed, *s)
		}
	}
	return closed, int64(len(closed)), nil
}

func (r *fakeShiftRepo) DB() *gorm.DB { return nil }

var _ repository.ShiftRepository = (*fakeShiftRepo)(nil)

// ── In-memory LedgerRepository ───────────────────────────────────────────────

type fakeLedgerRepo struct {
	mu        sync.Mutex
	movements []model.Movement
}

func newFakeLedgerRepo() *fakeLedgerRepo { return &fakeLedgerRepo{} }

func (r *fakeLedgerRepo) CreateMovement(_ context.Context, m *model.Movement) error {
	return r.store(m)
}

func (r *fakeLedgerRepo) CreateMovementTx(_ *gorm.DB, m *model.Movement) error {
	return r.store(m)
}

func (r *fakeLedgerRepo) store(m *model.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *fakeLedgerRepo) ListMovements(_ context.Context, shiftID uuid.UUID) ([]model.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Movement
	for _, m := range r.movements {
		if m.ShiftID == shiftID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) SumByCurrency(_ context.Context, shiftID uuid.UUID) (map[string]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sums := make(map[string]decimal.Decimal)
	for i := range r.movements {
		m := &r.movements[i]
		if m.ShiftID == shiftID {
			sums[m.Currency] = sums[m.Currency].Add(m.Signed())
		}
	}
	return sums, nil
}

var _ repository.LedgerRepository = (*fakeLedgerRepo)(nil)

// ── In-memory RegisterRepository ─────────────────────────────────────────────

type fakeRegisterRepo struct {
	mu        sync.Mutex
	registers map[uuid.UUID]*model.Register
}

func newFakeRegisterRepo() *fakeRegisterRepo {
	return &fakeRegisterRepo{registers: make(map[uuid.UUID]*model.Register)}
}

func (r *fakeRegisterRepo) addActive() uuid.UUID {
	reg := &model.Register{ID: uuid.New(), Name: "front desk 1", Active: true}
	r.mu.Lock()
	r.registers[reg.ID] = reg
	r.mu.Unlock()
	return reg.ID
}

func (r *fakeRegisterRepo) Create(_ context.Context, reg *model.Register) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	r.registers[reg.ID] = reg
	return nil
}

func (r *fakeRegisterRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Register, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registers[id]
	if !ok {
		return nil, errNotFound
	}
	return reg, nil
}

func (r *fakeRegisterRepo) List(_ context.Context) ([]model.Register, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Register
	for _, reg := range r.registers {
		out = append(out, *reg)
	}
	return out, nil
}

func (r *fakeRegisterRepo) Update(_ context.Context, reg *model.Register) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registers[reg.ID] = reg
	return nil
}

func (r *fakeRegisterRepo) HasShifts(_ context.Context, _ uuid.UUID) (bool, error) {
	return false, nil
}

var _ repository.RegisterRepository = (*fakeRegisterRepo)(nil)

// ── In-memory SeriesRepository ───────────────────────────────────────────────

// fakeSeriesRepo serializes Next with a mutex, matching the row-lock
// serialization the real allocator gets from UPDATE … RETURNING.
type fakeSeriesRepo struct {
	mu     sync.Mutex
	series map[uuid.UUID]*model.Series
	byKey  map[string]uuid.UUID
}

func newFakeSeriesRepo() *fakeSeriesRepo {
	return &fakeSeriesRepo{
		series: make(map[uuid.UUID]*model.Series),
		byKey:  make(map[string]uuid.UUID),
	}
}

func (r *fakeSeriesRepo) Resolve(_ context.Context, documentType, code string) (*model.Series, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := documentType + "/" + code
	if id, ok := r.byKey[key]; ok {
		return r.series[id], nil
	}
	s := &model.Series{ID: uuid.New(), DocumentType: documentType, Code: code}
	r.series[s.ID] = s
	r.byKey[key] = s.ID
	return s, nil
}

func (r *fakeSeriesRepo) Next(_ context.Context, seriesID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[seriesID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	s.LastNumber++
	return s.LastNumber, nil
}

var _ repository.SeriesRepository = (*fakeSeriesRepo)(nil)

// ── In-memory PaymentRepository ──────────────────────────────────────────────

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*model.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*model.Payment)}
}

func (r *fakePaymentRepo) CreateTx(_ *gorm.DB, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	r.payments[p.ID] = p
	return nil
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, errNotFound
	}
	return p, nil
}

func (r *fakePaymentRepo) FindByDocumentID(_ context.Context, documentID uuid.UUID) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.DocumentID == documentID {
			return p, nil
		}
	}
	return nil, errNotFound
}

func (r *fakePaymentRepo) ListByShift(_ context.Context, shiftID uuid.UUID) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Payment
	for _, p := range r.payments {
		if p.ShiftID == shiftID {
			out = append(out, *p)
		}
	}
	return out, nil
}

var _ repository.PaymentRepository = (*fakePaymentRepo)(nil)

// ── In-memory DocumentRepository ─────────────────────────────────────────────

type fakeDocumentRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*model.FiscalDocument
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: make(map[uuid.UUID]*model.FiscalDocument)}
}

func (r *fakeDocumentRepo) CreateTx(_ *gorm.DB, d *model.FiscalDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	for _, existing := range r.docs {
		if existing.Type == d.Type && existing.Series == d.Series && existing.Number == d.Number {
			return fmt.Errorf(`duplicate key value violates unique constraint "idx_type_series_number"`)
		}
	}
	if d.Type == model.DocCreditNote && d.CorrectsID != nil {
		for _, existing := range r.docs {
			if existing.Type == model.DocCreditNote && existing.CorrectsID != nil &&
				*existing.CorrectsID == *d.CorrectsID && existing.AuthorityState != model.StateRejected {
				return fmt.Errorf(`duplicate key value violates unique constraint "uni_documents_live_correction"`)
			}
		}
	}
	d.CreatedAt = time.Now()
	r.docs[d.ID] = d
	return nil
}

func (r *fakeDocumentRepo) FindByID(_ context.Context, id uuid.UUID) (*model.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, errNotFound
	}
	return d, nil
}

func (r *fakeDocumentRepo) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.FiscalDocument, error) {
	return r.FindByID(context.Background(), id)
}

func (r *fakeDocumentRepo) Update(_ context.Context, d *model.FiscalDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[d.ID] = d
	return nil
}

func (r *fakeDocumentRepo) UpdateTx(_ *gorm.DB, d *model.FiscalDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[d.ID] = d
	return nil
}

func (r *fakeDocumentRepo) FindCreditNotesFor(_ context.Context, originalID uuid.UUID) ([]model.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var notes []model.FiscalDocument
	for _, d := range r.docs {
		if d.CorrectsID != nil && *d.CorrectsID == originalID {
			notes = append(notes, *d)
		}
	}
	return notes, nil
}

func (r *fakeDocumentRepo) ListPendingRetries(_ context.Context, now time.Time, limit int) ([]model.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FiscalDocument
	for _, d := range r.docs {
		if d.AuthorityState == model.StatePending && !d.ManualSubmission &&
			d.NextRetryAt != nil && !d.NextRetryAt.After(now) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDocumentRepo) ListPending(_ context.Context, limit int) ([]model.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FiscalDocument
	for _, d := range r.docs {
		if d.AuthorityState == model.StatePending {
			out = append(out, *d)
		}
	}
	return out, nil
}

var _ repository.DocumentRepository = (*fakeDocumentRepo)(nil)

// ── In-memory IdempotencyRepository ──────────────────────────────────────────

type fakeIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]*model.IdempotencyRecord
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{records: make(map[string]*model.IdempotencyRecord)}
}

func (r *fakeIdempotencyRepo) Find(_ context.Context, key string) (*model.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rec, nil
}

func (r *fakeIdempotencyRepo) CreateTx(_ *gorm.DB, rec *model.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.Key]; exists {
		return fmt.Errorf(`duplicate key value violates unique constraint "idempotency_records_pkey"`)
	}
	rec.CreatedAt = time.Now()
	r.records[rec.Key] = rec
	return nil
}

var _ repository.IdempotencyRepository = (*fakeIdempotencyRepo)(nil)

// ── Dispatcher fake ──────────────────────────────────────────────────────────

type fakeDispatcher struct {
	mu          sync.Mutex
	submissions []uuid.UUID
	emails      []worker.EmailJob
}

func (d *fakeDispatcher) EnqueueSubmission(_ context.Context, documentID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions = append(d.submissions, documentID)
	return nil
}

func (d *fakeDispatcher) EnqueueEmail(_ context.Context, job worker.EmailJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, job)
	return nil
}

var _ worker.Dispatcher = (*fakeDispatcher)(nil)
