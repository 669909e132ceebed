// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for in-app
// notifications.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mechanicondemand/go-backend/internal/domain"
)

// CreateNotification inserts one in-app notification row for a recipient.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Channel == "" {
		n.Channel = "in_app"
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(n).Error
}

// CountNotifications returns the total number of notifications for a user.
func CountNotifications(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListNotificationsPage returns a page of a user's notifications, newest
// first.
func ListNotificationsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkNotificationRead flips the read flag on a notification owned by
// userID. Returns ErrNotFound when the row does not exist or belongs to
// someone else.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
