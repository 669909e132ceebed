// Notification HTTP handlers.
//
// Read side of the in-app notification feed:
//   - GET /notifications            (paginated, newest first)
//   - PUT /notifications/{id}/read  (mark read)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mechanicondemand/go-backend/internal/domain"
	"github.com/mechanicondemand/go-backend/internal/services"
)

// ListNotificationsResponse wraps a page of notifications.
type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Pagination    Pagination            `json:"pagination"`
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List notifications (paginated)
// @Description Returns a page of the authenticated user's in-app notifications, newest first.
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListNotificationsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	u := actor(c)
	if u == nil {
		return
	}
	page, pageSize := clampPagination(c)

	items, total, err := h.notifSvc.ListPage(c.Request.Context(), u.ID, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListNotificationsResponse{
		Notifications: items,
		Pagination:    paginationOf(page, pageSize, total),
	})
}

// MarkNotificationRead godoc
// @ID          markNotificationRead
// @Summary     Mark a notification as read
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Notification ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /notifications/{id}/read [put]
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	u := actor(c)
	if u == nil {
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "notification id must be a UUID")
		return
	}

	if err := h.notifSvc.MarkRead(c.Request.Context(), u.ID, id); err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
