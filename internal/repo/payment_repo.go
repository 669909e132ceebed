// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for payments.
//
// Payment creation is the one write in the system that must never happen
// twice for the same request: the ux_payment_request unique index backs the
// lazy create, and unique violations surface as ErrDuplicate so concurrent
// duplicate transitions into pending_payment collapse into a single row.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mechanicondemand/go-backend/internal/domain"
)

// ErrDuplicate indicates that a payment already exists for the service
// request.
var ErrDuplicate = errors.New("duplicate")

// GetPaymentByRequest returns the payment for a service request, or
// ErrNotFound.
func GetPaymentByRequest(ctx context.Context, db *gorm.DB, serviceRequestID string) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).Where("service_request_id = ?", serviceRequestID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment inserts a pending payment for serviceRequestID with the
// given amount. Returns ErrDuplicate when a payment already exists.
func CreatePayment(ctx context.Context, db *gorm.DB, serviceRequestID string, amount float64) (*domain.Payment, error) {
	now := time.Now().UTC()
	p := &domain.Payment{
		ID:               uuid.NewString(),
		ServiceRequestID: serviceRequestID,
		Amount:           amount,
		Status:           "pending",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return p, nil
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite: "UNIQUE constraint failed"
	// postgres: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
