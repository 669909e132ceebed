// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for service
// requests and their append-only status history.
//
// The status write path follows a compare-and-set discipline: updates carry
// the expected current status in the WHERE clause, so a concurrent writer
// that moved the request first makes the update a no-op instead of a silent
// lost write. Callers translate zero rows affected into a conflict.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mechanicondemand/go-backend/internal/domain"
)

// GetServiceRequest fetches a request by id together with its vehicle, shop,
// and payment records. Returns ErrNotFound when absent.
func GetServiceRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ServiceRequest, error) {
	var sr domain.ServiceRequest
	err := db.WithContext(ctx).
		Preload("Vehicle").
		Preload("Shop").
		Preload("Payment").
		Where("id = ?", id).
		First(&sr).Error
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

// UpdateRequestStatus moves a request from expected to next and replaces the
// notes column, but only when the row still carries the expected status.
// It reports whether the write took effect.
func UpdateRequestStatus(ctx context.Context, db *gorm.DB, id string, expected, next domain.Status, notes domain.NoteList) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]any{
			"status":     next,
			"notes":      notes,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateRequestFields applies a filtered partial update. When the update
// includes a status change, expectedStatus guards the write the same way
// UpdateRequestStatus does; otherwise the update is keyed by id alone.
// It reports whether any row was written.
func UpdateRequestFields(ctx context.Context, db *gorm.DB, id string, expectedStatus *domain.Status, updates map[string]any) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	updates["updated_at"] = time.Now().UTC()

	q := db.WithContext(ctx).Model(&domain.ServiceRequest{}).Where("id = ?", id)
	if expectedStatus != nil {
		q = q.Where("status = ?", *expectedStatus)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AppendStatusHistory inserts one immutable history row for a completed
// transition.
func AppendStatusHistory(ctx context.Context, db *gorm.DB, h *domain.StatusHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(h).Error
}

// CountStatusHistory returns the number of history rows for a request.
func CountStatusHistory(ctx context.Context, db *gorm.DB, serviceRequestID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.StatusHistory{}).
		Where("service_request_id = ?", serviceRequestID).
		Count(&total).Error
	return total, err
}

// ListStatusHistoryPage returns a page of history rows for a request, newest
// first.
func ListStatusHistoryPage(ctx context.Context, db *gorm.DB, serviceRequestID string, offset, limit int) ([]domain.StatusHistory, error) {
	var out []domain.StatusHistory
	err := db.WithContext(ctx).
		Where("service_request_id = ?", serviceRequestID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
