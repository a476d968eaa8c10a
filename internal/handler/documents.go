package handler

import (
	"net/http"
	"strconv"

	"frontdesk/internal/apierror"
	"frontdesk/internal/dto"
	"frontdesk/internal/middleware"
	"frontdesk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DocumentHandler struct {
	svc           service.DocumentService
	creditNotes   service.CreditNoteService
	callbackToken string
}

func NewDocumentHandler(svc service.DocumentService, creditNotes service.CreditNoteService, callbackToken string) *DocumentHandler {
	return &DocumentHandler{svc: svc, creditNotes: creditNotes, callbackToken: callbackToken}
}

// IssueCreditNote godoc
// @Summary Issues a credit note correcting an accepted document
// @Tags documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.IssueCreditNoteRequest true "Correction data"
// @Success 201 {object} dto.DocumentResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/credit-notes [post]
func (h *DocumentHandler) IssueCreditNote(c *gin.Context) {
	var req dto.IssueCreditNoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	operatorID, _ := uuid.Parse(claims.UserID)

	resp, err := h.creditNotes.Issue(c.Request.Context(), operatorID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get godoc
// @Summary Returns one fiscal document with its authority state
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} dto.DocumentResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListPending lists documents still awaiting an authority verdict.
func (h *DocumentHandler) ListPending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	resp, err := h.svc.ListPending(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// Resubmit godoc
// @Summary Re-enqueues a pending document flagged for manual submission
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} dto.DocumentResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/documents/{id}/resubmit [post]
func (h *DocumentHandler) Resubmit(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Resubmit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AuthorityCallback receives the gateway's verdict for a submitted document.
// Authenticated by a shared token, not JWT — the caller is the sidecar.
func (h *DocumentHandler) AuthorityCallback(c *gin.Context) {
	if c.GetHeader("X-Callback-Token") != h.callbackToken || h.callbackToken == "" {
		c.JSON(http.StatusUnauthorized, apierror.New("invalid callback token"))
		return
	}
	var req dto.AuthorityCallbackRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.OnAuthorityResult(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
