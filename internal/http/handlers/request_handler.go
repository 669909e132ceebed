// Service request HTTP handlers.
//
// This file exposes REST endpoints for service request resources:
//   - GET /service-request/{id}           (joined record)
//   - PUT /service-request/{id}           (role-filtered partial update)
//   - GET /service-request/{id}/history   (status history, paginated)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mechanicondemand/go-backend/internal/domain"
	"github.com/mechanicondemand/go-backend/internal/http/middleware"
	"github.com/mechanicondemand/go-backend/internal/services"
	"github.com/mechanicondemand/go-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// RequestService defines the service request operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type RequestService interface {
	// Get returns the joined record after a permission check.
	Get(ctx context.Context, actor *domain.User, id string) (*domain.ServiceRequest, error)
	// UpdateStatus applies a dedicated status change with mutual-mode validation.
	UpdateStatus(ctx context.Context, actor *domain.User, id string, next domain.Status, note string) (*domain.ServiceRequest, error)
	// UpdateFields applies a role-filtered partial update.
	UpdateFields(ctx context.Context, actor *domain.User, id string, body map[string]any) (*domain.ServiceRequest, error)
	// ListHistory returns a page of status history rows and the total count.
	ListHistory(ctx context.Context, actor *domain.User, id string, page, pageSize int) ([]domain.StatusHistory, int64, error)
}

// NotificationService defines the in-app notification operations consumed
// by HTTP handlers.
type NotificationService interface {
	// ListPage returns a page of the user's notifications and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Notification, int64, error)
	// MarkRead flags one of the user's notifications as read.
	MarkRead(ctx context.Context, userID, id string) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for service requests and notifications.
type Handlers struct {
	reqSvc   RequestService
	notifSvc NotificationService
}

// New constructs a Handlers instance bound to the given services.
func New(reqSvc RequestService, notifSvc NotificationService) *Handlers {
	return &Handlers{reqSvc: reqSvc, notifSvc: notifSvc}
}

// actor returns the authenticated user attached by the auth middleware.
// Returns nil (after writing a 401) when the request slipped past auth.
func actor(c *gin.Context) *domain.User {
	u := middleware.UserFrom(c)
	if u == nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	}
	return u
}

// mapServiceError translates service-level sentinel errors to HTTP results.
func mapServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrRequestNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "service request not found")
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not permitted to access this service request")
	case errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid status value")
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusBadRequest, ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, services.ErrNoUpdatableFields):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListHistoryResponse wraps a page of status history rows.
type ListHistoryResponse struct {
	History    []domain.StatusHistory `json:"history"`
	Pagination Pagination             `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

func paginationOf(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Handlers
//

// GetServiceRequest godoc
// @ID          getServiceRequest
// @Summary     Fetch a service request
// @Description Returns the service request joined with its vehicle, shop, and payment records.
// @Tags        ServiceRequests
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Service request ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.ServiceRequest
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a stakeholder"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /service-request/{id} [get]
func (h *Handlers) GetServiceRequest(c *gin.Context) {
	u := actor(c)
	if u == nil {
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "service request id must be a UUID")
		return
	}

	sr, err := h.reqSvc.Get(c.Request.Context(), u, id)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, sr)
}

// UpdateServiceRequest godoc
// @ID          updateServiceRequest
// @Summary     Update a service request
// @Description Applies a partial update. The body is filtered to the caller's allowed fields for their role and the request's current status; a submitted status change is validated against the transition table. Entering pending_payment creates the payment record when a price is set.
// @Tags        ServiceRequests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string          true  "Service request ID (UUID)"  format(uuid)
// @Param       body  body  map[string]any  true  "Fields to update"
//
// @Success     200  {object}  domain.ServiceRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error or denied transition"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a stakeholder"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Concurrent modification"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /service-request/{id} [put]
func (h *Handlers) UpdateServiceRequest(c *gin.Context) {
	u := actor(c)
	if u == nil {
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "service request id must be a UUID")
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sr, err := h.reqSvc.UpdateFields(c.Request.Context(), u, id, body)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, sr)
}

// ListServiceRequestHistory godoc
// @ID          listServiceRequestHistory
// @Summary     List status history (paginated)
// @Description Returns the append-only status history of a service request, newest first.
// @Tags        ServiceRequests
// @Produce     json
// @Security    BearerAuth
//
// @Param       id         path   string  true  "Service request ID (UUID)"  format(uuid)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListHistoryResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a stakeholder"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /service-request/{id}/history [get]
func (h *Handlers) ListServiceRequestHistory(c *gin.Context) {
	u := actor(c)
	if u == nil {
		return
	}
	id := c.Param("id")
	page, pageSize := clampPagination(c)

	items, total, err := h.reqSvc.ListHistory(c.Request.Context(), u, id, page, pageSize)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, ListHistoryResponse{
		History:    items,
		Pagination: paginationOf(page, pageSize, total),
	})
}
