// Package services – NotificationService
//
// Read-side operations for in-app notifications: paginated listing for the
// authenticated user and read-state toggling.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mechanicondemand/go-backend/internal/domain"
	"github.com/mechanicondemand/go-backend/internal/repo"
)

// NotificationService provides access to a user's in-app notifications.
type NotificationService struct {
	DB *gorm.DB
}

// ListPage returns a page of the user's notifications, newest first, plus
// the total count.
func (s *NotificationService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	total, err := repo.CountNotifications(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Notification{}, 0, nil
	}
	items, err := repo.ListNotificationsPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	err := repo.MarkNotificationRead(ctx, s.DB, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotificationNotFound
	}
	return err
}
