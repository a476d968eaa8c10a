package handler

import (
	"net/http"
	"strconv"

	"frontdesk/internal/dto"
	"frontdesk/internal/middleware"
	"frontdesk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ShiftHandler struct {
	svc    service.ShiftService
	ledger service.LedgerService
}

func NewShiftHandler(svc service.ShiftService, ledger service.LedgerService) *ShiftHandler {
	return &ShiftHandler{svc: svc, ledger: ledger}
}

// Open godoc
// @Summary Opens a cash shift on a register
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenShiftRequest true "Opening declaration"
// @Success 201 {object} dto.ShiftReportResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/shifts/open [post]
func (h *ShiftHandler) Open(c *gin.Context) {
	var req dto.OpenShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	operatorID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Open(c.Request.Context(), operatorID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary Performs the blind reconciliation and closes the shift
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CloseShiftRequest true "Declared amounts"
// @Success 200 {object} dto.CloseShiftResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/shifts/close [post]
func (h *ShiftHandler) Close(c *gin.Context) {
	var req dto.CloseShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	operatorID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Close(c.Request.Context(), operatorID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecordMovement godoc
// @Summary Records a manual cash in/out movement on an open shift
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.RecordMovementRequest true "Movement"
// @Success 201 {object} dto.MovementResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/shifts/movements [post]
func (h *ShiftHandler) RecordMovement(c *gin.Context) {
	var req dto.RecordMovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	operatorID, _ := uuid.Parse(claims.UserID)

	resp, err := h.ledger.RecordMovement(c.Request.Context(), operatorID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetOpen godoc
// @Summary Returns the open shift on a register, if any
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param register_id path string true "Register ID"
// @Success 200 {object} dto.ShiftReportResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/shifts/open/{register_id} [get]
func (h *ShiftHandler) GetOpen(c *gin.Context) {
	registerID, ok := parseUUIDParam(c, "register_id")
	if !ok {
		return
	}
	resp, err := h.svc.GetOpen(c.Request.Context(), registerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Report godoc
// @Summary Full shift report: openings, movements, balances, reconciliation
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Success 200 {object} dto.ShiftReportResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/shifts/{id}/report [get]
func (h *ShiftHandler) Report(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History returns a paginated list of closed shifts.
func (h *ShiftHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, total, err := h.svc.History(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "total": total, "page": page, "limit": limit})
}
