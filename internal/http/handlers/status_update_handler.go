// Status update HTTP handler.
//
// POST /status-update is the dedicated, session-authenticated status change
// operation. Unlike the generic resource PUT, its transition validation runs
// in mutual mode: the transition table must list the move in both
// directions for the acting role.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mechanicondemand/go-backend/internal/domain"
)

// StatusUpdateRequest is the JSON payload for the status-update endpoint.
type StatusUpdateRequest struct {
	ServiceRequestID string `json:"serviceRequestId" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Status           string `json:"status"           binding:"required" example:"accepted"`
	Notes            string `json:"notes"            example:"Customer approved the quote"`
}

// StatusUpdateResponse wraps the outcome of a status change.
type StatusUpdateResponse struct {
	Success        bool                   `json:"success"`
	Message        string                 `json:"message"`
	ServiceRequest *domain.ServiceRequest `json:"serviceRequest"`
}

// StatusUpdate godoc
// @ID          statusUpdate
// @Summary     Change a service request's status
// @Description Validates the transition for the caller's role (both directions of the transition table must agree), checks stakeholder permission, persists the change with an optional note, records history, and notifies the other stakeholders.
// @Tags        StatusUpdates
// @Accept      json
// @Produce     json
// @Security    SessionAuth
//
// @Param       body  body  handlers.StatusUpdateRequest  true  "Status update payload"
//
// @Success     200  {object}  handlers.StatusUpdateResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error or denied transition"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a stakeholder"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Concurrent modification"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /status-update [post]
func (h *Handlers) StatusUpdate(c *gin.Context) {
	u := actor(c)
	if u == nil {
		return
	}

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "serviceRequestId and status are required")
		return
	}

	next := domain.Status(strings.TrimSpace(req.Status))
	sr, err := h.reqSvc.UpdateStatus(c.Request.Context(), u, req.ServiceRequestID, next, strings.TrimSpace(req.Notes))
	if err != nil {
		mapServiceError(c, err)
		return
	}

	ok(c, http.StatusOK, StatusUpdateResponse{
		Success:        true,
		Message:        "status updated to " + string(next),
		ServiceRequest: sr,
	})
}
