package service

import (
	"context"

	"frontdesk/internal/apierror"
	"frontdesk/internal/dto"
	"frontdesk/internal/model"
	"frontdesk/internal/repository"

	"github.com/google/uuid"
)

type RegisterService interface {
	Create(ctx context.Context, req dto.CreateRegisterRequest) (*dto.RegisterResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.RegisterResponse, error)
	List(ctx context.Context) ([]dto.RegisterResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateRegisterRequest) (*dto.RegisterResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type registerService struct {
	repo      repository.RegisterRepository
	shiftRepo repository.ShiftRepository
}

func NewRegisterService(repo repository.RegisterRepository, shiftRepo repository.ShiftRepository) RegisterService {
	return &registerService{repo: repo, shiftRepo: shiftRepo}
}

func (s *registerService) Create(ctx context.Context, req dto.CreateRegisterRequest) (*dto.RegisterResponse, error) {
	reg := &model.Register{Name: req.Name, Active: true}
	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, err
	}
	return registerToResponse(reg), nil
}

func (s *registerService) Get(ctx context.Context, id uuid.UUID) (*dto.RegisterResponse, error) {
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.Validationf("register not found")
	}
	return registerToResponse(reg), nil
}

func (s *registerService) List(ctx context.Context) ([]dto.RegisterResponse, error) {
	regs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RegisterResponse, 0, len(regs))
	for i := range regs {
		out = append(out, *registerToResponse(&regs[i]))
	}
	return out, nil
}

func (s *registerService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateRegisterRequest) (*dto.RegisterResponse, error) {
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.Validationf("register not found")
	}
	if req.Name != nil {
		reg.Name = *req.Name
	}
	if req.Active != nil {
		if !*req.Active {
			if err := s.ensureNoOpenShift(ctx, id); err != nil {
				return nil, err
			}
		}
		reg.Active = *req.Active
	}
	if err := s.repo.Update(ctx, reg); err != nil {
		return nil, err
	}
	return registerToResponse(reg), nil
}

// Deactivate turns the register off. Registers referenced by shifts are never
// deleted, only deactivated.
func (s *registerService) Deactivate(ctx context.Context, id uuid.UUID) error {
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return apierror.Validationf("register not found")
	}
	if err := s.ensureNoOpenShift(ctx, id); err != nil {
		return err
	}
	reg.Active = false
	return s.repo.Update(ctx, reg)
}

func (s *registerService) ensureNoOpenShift(ctx context.Context, id uuid.UUID) error {
	if shift, err := s.shiftRepo.FindOpenByRegister(ctx, id); err == nil {
		return apierror.Conflictf("register has open shift %s", shift.ID)
	}
	return nil
}

func registerToResponse(r *model.Register) *dto.RegisterResponse {
	return &dto.RegisterResponse{ID: r.ID.String(), Name: r.Name, Active: r.Active}
}
