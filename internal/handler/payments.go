package handler

import (
	"net/http"

	"frontdesk/internal/apierror"
	"frontdesk/internal/dto"
	"frontdesk/internal/infra"
	"frontdesk/internal/middleware"
	"frontdesk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	svc          service.IssuanceService
	reservations *infra.ReservationClient
}

func NewPaymentHandler(svc service.IssuanceService, reservations *infra.ReservationClient) *PaymentHandler {
	return &PaymentHandler{svc: svc, reservations: reservations}
}

// Issue godoc
// @Summary Collects a payment and issues its fiscal document atomically
// @Description Retrying with the same idempotency_key returns the original outcome.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.IssuePaymentRequest true "Payment and document data"
// @Success 201 {object} dto.IssuePaymentResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/payments [post]
func (h *PaymentHandler) Issue(c *gin.Context) {
	var req dto.IssuePaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	operatorID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.IssuePayment(c.Request.Context(), operatorID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ReservationBalance godoc
// @Summary Looks up the outstanding balance for a reservation
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Reservation reference"
// @Success 200 {object} infra.ReservationBalance
// @Failure 502 {object} apierror.APIError
// @Router /v1/reservations/{ref}/balance [get]
func (h *PaymentHandler) ReservationBalance(c *gin.Context) {
	ref := c.Param("ref")
	if ref == "" {
		c.JSON(http.StatusBadRequest, apierror.New("missing reservation reference"))
		return
	}
	balance, err := h.reservations.LookupBalance(c.Request.Context(), ref)
	if err != nil {
		respondError(c, &apierror.ExternalServiceError{Service: "reservation service", Err: err})
		return
	}
	c.JSON(http.StatusOK, balance)
}
